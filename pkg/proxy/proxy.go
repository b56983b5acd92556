// Package proxy resolves the egress proxy configuration and verifies it
// actually reaches the public internet before any authentication attempt
// is spent through it.
package proxy

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"linkscraper/pkg/config"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/logger"
)

// Resolved is the single proxy configuration used for a run. Immutable
// after Resolve.
type Resolved struct {
	// Server is the proxy endpoint in scheme://host:port form, suitable
	// for the browser launcher.
	Server   string
	Username string
	Password string
}

// Gateway owns proxy resolution and egress verification for one run.
type Gateway struct {
	cfg      *config.Config
	resolved *Resolved
	client   *resty.Client
	log      logger.Logger
}

// NewGateway resolves the proxy configuration. It fails fast when the
// deployment requires a proxy and none resolves: an unproxied run against
// a platform that rate-limits by IP burns the host's own egress identity.
func NewGateway(cfg *config.Config, log logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	resolved, err := Resolve(&cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if resolved == nil && cfg.Proxy.Required {
		return nil, errs.New(errs.ErrorTypeConfig, "proxy required but not configured")
	}

	g := &Gateway{cfg: cfg, resolved: resolved, log: log}
	// A single failed echo request is a warning, not a verdict; only
	// repeated failure marks the egress path as down.
	g.client = resty.New().
		SetTimeout(cfg.Proxy.VerifyTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || errs.IsRetryableStatusCode(r.StatusCode())
		}).
		SetHeader("User-Agent", cfg.LinkedIn.UserAgent)
	if resolved != nil {
		g.client.SetProxy(resolved.ClientURL())
	}
	return g, nil
}

// Resolve picks exactly one proxy configuration from the fixed precedence:
// a full proxy URL wins over discrete host/port/credential fields. A nil
// result with nil error means no proxy is configured.
func Resolve(p *config.ProxyConfig) (*Resolved, error) {
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil {
			return nil, errs.Newf(errs.ErrorTypeConfig, "invalid proxy url: %v", err)
		}
		if u.Host == "" {
			return nil, errs.Newf(errs.ErrorTypeConfig, "proxy url %q has no host", p.URL)
		}
		scheme := u.Scheme
		if scheme == "" {
			scheme = "http"
		}
		r := &Resolved{Server: fmt.Sprintf("%s://%s", scheme, u.Host)}
		if u.User != nil {
			r.Username = u.User.Username()
			r.Password, _ = u.User.Password()
		}
		// Discrete credential fields fill in what the URL omits.
		if r.Username == "" {
			r.Username = p.Username
			r.Password = p.Password
		}
		return r, nil
	}

	if p.Host != "" && p.Port != "" {
		return &Resolved{
			Server:   fmt.Sprintf("http://%s:%s", p.Host, p.Port),
			Username: p.Username,
			Password: p.Password,
		}, nil
	}

	return nil, nil
}

// ClientURL returns the proxy URL with embedded credentials, for HTTP
// clients that take credentials in-URL.
func (r *Resolved) ClientURL() string {
	if r.Username == "" {
		return r.Server
	}
	u, err := url.Parse(r.Server)
	if err != nil {
		return r.Server
	}
	u.User = url.UserPassword(r.Username, r.Password)
	return u.String()
}

// Resolved returns the resolved proxy, or nil when running direct.
func (g *Gateway) Resolved() *Resolved {
	return g.resolved
}

// VerifyEgress performs a lightweight request to the configured echo
// endpoint through the proxy. An unreachable proxy nearly always means
// subsequent login attempts will fail or show up as suspicious direct
// traffic, so callers should treat failure here as a reason to abort
// before login.
func (g *Gateway) VerifyEgress(ctx context.Context) error {
	start := time.Now()
	resp, err := g.client.R().SetContext(ctx).Get(g.cfg.Proxy.VerifyURL)
	if err != nil {
		return errs.Newf(errs.ErrorTypeConnectivity, "egress verification failed: %v", err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 400 {
		return &errs.Error{
			Type:    errs.ErrorTypeConnectivity,
			Message: "egress verification rejected",
			Code:    code,
		}
	}

	g.log.WithFields(map[string]interface{}{
		"egress_ip": string(resp.Body()),
		"duration":  time.Since(start),
		"proxied":   g.resolved != nil,
	}).Info("Egress verified")
	return nil
}
