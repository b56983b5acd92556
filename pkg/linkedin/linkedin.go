// Package linkedin holds everything the scraper knows about the target
// platform: URL shapes, the session cookie, the login-confirmation page
// signals, and the feed extraction adapter. Nothing outside this package
// inspects LinkedIn markup or URLs.
package linkedin

import (
	"strings"
	"time"
)

const (
	// BaseURL is the platform landing page.
	BaseURL = "https://www.linkedin.com"
	// FeedURL is the authenticated landing page used for login checks.
	FeedURL = BaseURL + "/feed/"
	// LoginURL is the credential login form.
	LoginURL = BaseURL + "/login"

	// SessionCookieName is the cookie whose presence and freshness gates
	// access to authenticated pages.
	SessionCookieName = "li_at"

	// CookieDomain is the domain session cookies must carry.
	CookieDomain = ".linkedin.com"
)

// RawRecord is one extracted feed item, as returned by an extraction
// adapter. ExternalID is a canonical post URL or platform-issued id and
// is the dedup key; records without one are rejected before persistence.
type RawRecord struct {
	ExternalID    string    `json:"externalId"`
	AuthorName    string    `json:"authorName"`
	AuthorURL     string    `json:"authorUrl"`
	Body          string    `json:"body"`
	PublishedAt   time.Time `json:"publishedAt"`
	ReactionCount int       `json:"reactionCount"`
	CommentCount  int       `json:"commentCount"`
	ShareCount    int       `json:"shareCount"`
	HasMedia      bool      `json:"hasMedia"`
	MediaURL      string    `json:"mediaUrl"`
}

// PageKind classifies what kind of page a URL points at.
type PageKind int

const (
	PageUnknown PageKind = iota
	PageLogin
	PageCheckpoint
	PageConnectionError
	PageAuthenticated
)

// ClassifyURL maps a current page URL onto the states the session state
// machine cares about. Checkpoint pages are the platform's bot-defence
// interstitials; chrome-error URLs are the browser's own connection
// error pages.
func ClassifyURL(url string) PageKind {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "chrome-error://"),
		strings.Contains(lower, "/chrome/error"):
		return PageConnectionError
	case strings.Contains(lower, "/checkpoint"),
		strings.Contains(lower, "/authwall"),
		strings.Contains(lower, "/uas/login"):
		return PageCheckpoint
	case strings.Contains(lower, "/login"),
		strings.Contains(lower, "/signup"),
		strings.Contains(lower, "session_key"):
		return PageLogin
	case strings.Contains(lower, "/feed"),
		strings.Contains(lower, "/mynetwork"),
		strings.Contains(lower, "/jobs"),
		strings.Contains(lower, "/messaging"),
		strings.Contains(lower, "/in/"),
		strings.Contains(lower, "/company/"):
		return PageAuthenticated
	default:
		return PageUnknown
	}
}

// IsConnectionErrorURL reports whether the browser landed on its internal
// connection-error page rather than any server-rendered content.
func IsConnectionErrorURL(url string) bool {
	return ClassifyURL(url) == PageConnectionError
}

// ListingURL derives the content listing URL for a source profile,
// deterministically from the URL shape. Company pages expose a posts
// listing; personal profiles expose a recent-activity listing. Any other
// shape is not scrapable and the source is skipped.
func ListingURL(profileURL string) (string, bool) {
	trimmed := strings.TrimRight(strings.TrimSpace(profileURL), "/")
	if trimmed == "" {
		return "", false
	}
	// Strip any query string; tracking params change per share.
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = strings.TrimRight(trimmed[:i], "/")
	}

	lower := strings.ToLower(trimmed)
	switch {
	// Sources already configured as a listing URL pass through unchanged.
	case strings.HasSuffix(lower, "/posts"):
		return trimmed + "/?feedView=all", true
	case strings.Contains(lower, "/recent-activity"):
		return trimmed + "/", true
	case strings.Contains(lower, "/company/") || strings.Contains(lower, "/school/"):
		return trimmed + "/posts/?feedView=all", true
	case strings.Contains(lower, "/in/"):
		return trimmed + "/recent-activity/all/", true
	default:
		return "", false
	}
}
