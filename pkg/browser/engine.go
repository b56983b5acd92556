// Package browser wraps the browser-automation engine behind a narrow
// interface. The scraping core only depends on navigation with a timeout,
// cookie get/set, JS evaluation into fixed-shape structs, and form input;
// the rod adapter is the single place that knows about Chrome.
package browser

import (
	"context"
	"time"
)

// Cookie is the engine-neutral cookie shape. Expires is a unix timestamp
// in seconds; zero means a session-scoped cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// NavResult describes where a navigation actually landed. Status is the
// HTTP status of the main document, or zero when no response was observed
// (browser-internal connection errors).
type NavResult struct {
	URL    string
	Status int
}

// Engine is the contract the scraping core holds against the automation
// engine. Implementations must be safe for sequential use from a single
// goroutine; no concurrent access is ever made.
type Engine interface {
	// Navigate loads a URL with a bounded timeout and reports where the
	// page landed. A non-nil error means the navigation itself failed
	// (connection refused, DNS, proxy down); an error page served by the
	// browser is reported through NavResult.URL instead.
	Navigate(ctx context.Context, url string, timeout time.Duration) (NavResult, error)

	// CurrentURL returns the URL of the currently loaded page.
	CurrentURL() string

	// SetCookies applies cookies to the active network session.
	SetCookies(cookies []Cookie) error

	// Cookies returns all cookies of the active network session.
	Cookies() ([]Cookie, error)

	// ClearCookies removes all cookies from the active network session.
	ClearCookies() error

	// Evaluate runs a JS function body on the loaded page and unmarshals
	// its JSON result into out. The core only ever consumes fixed-shape
	// results, never raw markup.
	Evaluate(ctx context.Context, js string, out interface{}) error

	// Input types text into the element matching the selector.
	Input(ctx context.Context, selector, text string) error

	// Click clicks the element matching the selector.
	Click(ctx context.Context, selector string) error

	// WaitStable waits for the page to settle after a navigation or an
	// injected interaction.
	WaitStable(ctx context.Context, d time.Duration) error

	// Close shuts the engine down and releases the browser.
	Close() error
}
