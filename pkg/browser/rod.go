package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"linkscraper/pkg/logger"
)

// Options configures the rod engine.
type Options struct {
	// ProxyServer in host:port or scheme://host:port form, passed to the
	// Chrome launcher. Empty means direct connection.
	ProxyServer string
	// ProxyUsername/ProxyPassword answer Chrome's proxy auth challenge.
	ProxyUsername string
	ProxyPassword string

	UserAgent string

	// Headful opens a visible window; required for manual login.
	Headful bool

	// BlockResources lists resource types to abort (images, media, fonts).
	// Cuts proxy egress cost and speeds up page loads.
	BlockResources []string

	Logger logger.Logger
}

// RodEngine implements Engine on go-rod with the stealth page patches.
type RodEngine struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	log     logger.Logger

	mu         sync.Mutex
	lastStatus int
}

// NewRodEngine launches Chrome and prepares a single stealth page.
func NewRodEngine(opts Options) (*RodEngine, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	l := launcher.New().
		Headless(!opts.Headful).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-notifications").
		Set("window-size", "1280,720")

	if opts.ProxyServer != "" {
		l = l.Set("proxy-server", opts.ProxyServer)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.WithError(err).Warn("Ignoring certificate errors failed")
	}

	// Answer proxy auth challenges for the lifetime of the browser.
	if opts.ProxyUsername != "" {
		go func() {
			for {
				if err := b.HandleAuth(opts.ProxyUsername, opts.ProxyPassword)(); err != nil {
					return
				}
			}
		}()
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			log.WithError(err).Warn("User agent override failed")
		}
	}

	e := &RodEngine{
		browser: b,
		page:    page,
		lnch:    l,
		log:     log,
	}

	if len(opts.BlockResources) > 0 {
		e.applyResourceBlocking(opts.BlockResources)
	}

	// Track the main-document status so Navigate can report HTTP-level
	// rejections that still render a page.
	go page.EachEvent(func(ev *proto.NetworkResponseReceived) {
		if ev.Type == proto.NetworkResourceTypeDocument {
			e.mu.Lock()
			e.lastStatus = ev.Response.Status
			e.mu.Unlock()
		}
	})()

	return e, nil
}

// applyResourceBlocking aborts requests for the given resource types.
func (e *RodEngine) applyResourceBlocking(types []string) {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := e.page.HijackRequests()
	router.MustAdd("*", func(hctx *rod.Hijack) {
		resType := strings.ToLower(string(hctx.Request.Type()))
		if blockSet[resType] || blockSet[resType+"s"] {
			hctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		hctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

// Navigate implements Engine.
func (e *RodEngine) Navigate(ctx context.Context, url string, timeout time.Duration) (NavResult, error) {
	e.mu.Lock()
	e.lastStatus = 0
	e.mu.Unlock()

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := e.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return NavResult{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		// Slow pages still land somewhere usable; report where we are.
		e.log.WithField("url", url).WithError(err).Warn("Page load wait timed out")
	}

	info, err := e.page.Info()
	if err != nil {
		return NavResult{}, fmt.Errorf("page info: %w", err)
	}

	e.mu.Lock()
	status := e.lastStatus
	e.mu.Unlock()

	return NavResult{URL: info.URL, Status: status}, nil
}

// CurrentURL implements Engine.
func (e *RodEngine) CurrentURL() string {
	info, err := e.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// SetCookies implements Engine.
func (e *RodEngine) SetCookies(cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return e.browser.SetCookies(params)
}

// Cookies implements Engine.
func (e *RodEngine) Cookies() ([]Cookie, error) {
	raw, err := e.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

// ClearCookies implements Engine.
func (e *RodEngine) ClearCookies() error {
	return proto.NetworkClearBrowserCookies{}.Call(e.page)
}

// Evaluate implements Engine.
func (e *RodEngine) Evaluate(ctx context.Context, js string, out interface{}) error {
	res, err := e.page.Context(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	data, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal eval result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

// Input implements Engine.
func (e *RodEngine) Input(ctx context.Context, selector, text string) error {
	el, err := e.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	// Select any prefilled text so Input replaces instead of appending.
	if err := el.SelectAllText(); err != nil {
		e.log.WithField("selector", selector).WithError(err).Debug("Select all text failed")
	}
	return el.Input(text)
}

// Click implements Engine.
func (e *RodEngine) Click(ctx context.Context, selector string) error {
	el, err := e.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// WaitStable implements Engine.
func (e *RodEngine) WaitStable(ctx context.Context, d time.Duration) error {
	return e.page.Context(ctx).WaitDOMStable(d, 0)
}

// Close implements Engine.
func (e *RodEngine) Close() error {
	err := e.browser.Close()
	if e.lnch != nil {
		e.lnch.Cleanup()
	}
	return err
}
