// Package session acquires and maintains an authenticated browsing
// session. It owns cookie persistence, the login state machine, and the
// signal heuristic that decides whether the account is actually logged in.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"linkscraper/pkg/browser"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/linkedin"
)

// Cookie exports from different tools disagree on the expiry field name
// and unit. A timestamp above this cutover is milliseconds, below it
// seconds.
const msCutover = 1e12

// rawCookie accepts the union of the export formats seen in the wild:
// devtools ("expires", seconds), extension exports ("expirationDate",
// seconds with fraction) and older dumps ("expiry", sometimes ms).
type rawCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	Expires        *float64 `json:"expires"`
	ExpirationDate *float64 `json:"expirationDate"`
	Expiry         *float64 `json:"expiry"`
	HTTPOnly       bool     `json:"httpOnly"`
	Secure         bool     `json:"secure"`
}

// ParseCookies decodes a JSON cookie export into the engine-neutral
// shape. Entries without a name are dropped. Expiry timestamps are
// normalised to unix seconds regardless of the source unit.
func ParseCookies(data []byte) ([]browser.Cookie, error) {
	var raw []rawCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Newf(errs.ErrorTypeConfig, "cookie blob is not a JSON array: %v", err)
	}

	cookies := make([]browser.Cookie, 0, len(raw))
	for _, rc := range raw {
		if strings.TrimSpace(rc.Name) == "" {
			continue
		}
		c := browser.Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			HTTPOnly: rc.HTTPOnly,
			Secure:   rc.Secure,
		}
		if c.Domain == "" {
			c.Domain = linkedin.CookieDomain
		}
		if c.Path == "" {
			c.Path = "/"
		}
		for _, e := range []*float64{rc.Expires, rc.ExpirationDate, rc.Expiry} {
			if e != nil && *e > 0 {
				c.Expires = normalizeExpiry(*e)
				break
			}
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

// normalizeExpiry converts a timestamp of unknown unit to unix seconds.
func normalizeExpiry(v float64) float64 {
	if v > msCutover {
		return v / 1000
	}
	return v
}

// SessionCookie returns the authentication cookie from a set, or nil.
func SessionCookie(cookies []browser.Cookie) *browser.Cookie {
	for i := range cookies {
		if cookies[i].Name == linkedin.SessionCookieName {
			return &cookies[i]
		}
	}
	return nil
}

// StatusCode classifies the health of a stored session cookie.
type StatusCode string

const (
	StatusNoSessionCookie StatusCode = "NO_SESSION_COOKIE"
	StatusNoExpiry        StatusCode = "NO_EXPIRY"
	StatusExpired         StatusCode = "EXPIRED"
	StatusValid           StatusCode = "VALID"
)

// Status reports the session cookie's expiry health.
type Status struct {
	Code      StatusCode
	ExpiresAt time.Time
	DaysLeft  int
}

func (s Status) String() string {
	if s.Code == StatusValid {
		return fmt.Sprintf("VALID_%d_DAYS_LEFT", s.DaysLeft)
	}
	return string(s.Code)
}

// Usable reports whether the cookie set is worth attempting to reuse.
// A cookie without an expiry is assumed live; the platform will reject
// it during verification if it is not.
func (s Status) Usable() bool {
	return s.Code == StatusValid || s.Code == StatusNoExpiry
}

// CookieStatus inspects the session cookie of a set relative to now.
func CookieStatus(cookies []browser.Cookie, now time.Time) Status {
	sc := SessionCookie(cookies)
	if sc == nil {
		return Status{Code: StatusNoSessionCookie}
	}
	if sc.Expires <= 0 {
		return Status{Code: StatusNoExpiry}
	}
	expiresAt := time.Unix(int64(normalizeExpiry(sc.Expires)), 0)
	if !expiresAt.After(now) {
		return Status{Code: StatusExpired, ExpiresAt: expiresAt}
	}
	daysLeft := int(expiresAt.Sub(now).Hours() / 24)
	return Status{Code: StatusValid, ExpiresAt: expiresAt, DaysLeft: daysLeft}
}
