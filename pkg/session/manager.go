package session

import (
	"context"
	"time"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/config"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
)

// State is the session lifecycle position. Transitions only move forward
// within one AcquireSession call; a new call starts over from NoSession.
type State int

const (
	// StateNoSession means no cookie set has been loaded yet.
	StateNoSession State = iota
	// StateLoaded means a stored cookie set was found but not yet proven.
	StateLoaded
	// StateVerified means the platform confirmed the session is live.
	StateVerified
	// StateExpired means the stored cookies are past expiry or were
	// rejected on reuse.
	StateExpired
	// StateBlocked means the platform steered the session into a
	// checkpoint or security challenge.
	StateBlocked
	// StateFailed means every configured login strategy was exhausted.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateLoaded:
		return "loaded"
	case StateVerified:
		return "verified"
	case StateExpired:
		return "expired"
	case StateBlocked:
		return "blocked"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Strategy identifies which login path produced a verified session.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyCookieReuse
	StrategyCredentialLogin
	StrategyManualLogin
)

func (s Strategy) String() string {
	switch s {
	case StrategyCookieReuse:
		return "cookie_reuse"
	case StrategyCredentialLogin:
		return "credential_login"
	case StrategyManualLogin:
		return "manual_login"
	default:
		return "none"
	}
}

// Navigator is the retrying page-transition dependency. Goto reports
// completion; it never fails hard.
type Navigator interface {
	Goto(ctx context.Context, url string) bool
}

// Advisor receives non-fatal advisories such as approaching cookie
// expiry. Delivery failures must never affect session acquisition.
type Advisor interface {
	CookieExpiryWarning(daysLeft int, expiresAt time.Time)
}

// Result describes the outcome of an acquisition attempt.
type Result struct {
	State    State
	Strategy Strategy
	Status   Status
}

// Manager drives session acquisition: load stored cookies, prove them
// against the platform, and fall back through credential and manual
// login when reuse fails.
type Manager struct {
	cfg      config.SessionConfig
	account  config.LinkedInConfig
	engine   browser.Engine
	nav      Navigator
	store    *Chain
	advisor  Advisor
	log      logger.Logger
	state    State
	now      func() time.Time
	settle   time.Duration

	// interactive opens a headful engine for manual login. Nil when the
	// process runs unattended.
	interactive func() (browser.Engine, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithAdvisor routes expiry advisories to a sink.
func WithAdvisor(a Advisor) Option {
	return func(m *Manager) { m.advisor = a }
}

// WithInteractiveEngine enables the manual login fallback.
func WithInteractiveEngine(factory func() (browser.Engine, error)) Option {
	return func(m *Manager) { m.interactive = factory }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wires a session manager over an engine, a navigator and a
// cookie store chain.
func NewManager(cfg config.SessionConfig, account config.LinkedInConfig, engine browser.Engine, nav Navigator, store *Chain, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	m := &Manager{
		cfg:     cfg,
		account: account,
		engine:  engine,
		nav:     nav,
		store:   store,
		log:     log,
		state:   StateNoSession,
		now:     time.Now,
		settle:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle position.
func (m *Manager) State() State { return m.state }

func (m *Manager) setState(s State) {
	if s == m.state {
		return
	}
	m.log.WithFields(map[string]interface{}{
		"from": m.state.String(),
		"to":   s.String(),
	}).Debug("Session state transition")
	m.state = s
}

// AcquireSession runs the login strategies in order until one yields a
// verified session. The returned error is non-nil only in the Failed
// terminal state.
func (m *Manager) AcquireSession(ctx context.Context) (Result, error) {
	m.state = StateNoSession
	res := Result{State: StateNoSession, Strategy: StrategyNone}

	cookies, source, err := m.store.Load()
	if err == nil {
		m.setState(StateLoaded)
		status := CookieStatus(cookies, m.now())
		res.Status = status
		m.log.WithFields(map[string]interface{}{
			"store":  source,
			"status": status.String(),
		}).Info("Loaded stored cookies")

		if !status.Usable() {
			m.log.WithField("status", status.String()).Warn("Stored session cookie unusable, skipping reuse")
			m.setState(StateExpired)
		} else {
			m.warnIfExpiring(status)
			ok, kind := m.verifyWithCookies(ctx, cookies)
			if ok {
				m.setState(StateVerified)
				res.State = StateVerified
				res.Strategy = StrategyCookieReuse
				m.log.Info("Session verified via cookie reuse")
				return res, nil
			}
			if kind == linkedin.PageCheckpoint {
				m.setState(StateBlocked)
				m.log.Warn("Platform checkpoint encountered during cookie reuse")
			} else {
				m.setState(StateExpired)
				m.log.Warn("Stored cookies rejected by the platform")
			}
		}
	}

	if m.account.Email != "" && m.account.Password != "" {
		ok, kind := m.credentialLogin(ctx)
		if ok {
			m.persistEngineCookies()
			m.setState(StateVerified)
			res.State = StateVerified
			res.Strategy = StrategyCredentialLogin
			res.Status = m.currentStatus()
			m.log.Info("Session verified via credential login")
			return res, nil
		}
		if kind == linkedin.PageCheckpoint {
			m.setState(StateBlocked)
			m.log.Warn("Platform checkpoint encountered during credential login")
		}
	}

	if m.cfg.ManualLoginEnabled && m.interactive != nil {
		if m.manualLogin(ctx) {
			m.setState(StateVerified)
			res.State = StateVerified
			res.Strategy = StrategyManualLogin
			res.Status = m.currentStatus()
			m.log.Info("Session verified via manual login")
			return res, nil
		}
	}

	m.setState(StateFailed)
	res.State = StateFailed
	return res, errs.New(errs.ErrorTypeAuth, "all configured login strategies failed to produce a verified session")
}

// verifyWithCookies applies a stored cookie set and checks whether the
// platform accepts it. One reload retry absorbs transient render
// failures before the set is declared rejected.
func (m *Manager) verifyWithCookies(ctx context.Context, cookies []browser.Cookie) (bool, linkedin.PageKind) {
	if err := m.engine.ClearCookies(); err != nil {
		m.log.WithError(err).Debug("Failed to clear cookies before reuse")
	}
	if err := m.engine.SetCookies(cookies); err != nil {
		m.log.WithError(err).Error("Failed to apply stored cookies")
		return false, linkedin.PageUnknown
	}

	var kind linkedin.PageKind
	for attempt := 1; attempt <= 2; attempt++ {
		if !m.nav.Goto(ctx, linkedin.FeedURL) {
			kind = linkedin.PageConnectionError
			continue
		}
		_ = m.engine.WaitStable(ctx, m.settle)
		var ok bool
		ok, kind = m.confirmLoggedIn(ctx)
		if ok {
			return true, kind
		}
		if kind == linkedin.PageCheckpoint {
			return false, kind
		}
	}
	return false, kind
}

// credentialLogin submits the configured email and password through the
// login form and verifies the resulting session.
func (m *Manager) credentialLogin(ctx context.Context) (bool, linkedin.PageKind) {
	m.log.Info("Attempting credential login")
	if err := m.engine.ClearCookies(); err != nil {
		m.log.WithError(err).Debug("Failed to clear cookies before login")
	}
	if !m.nav.Goto(ctx, linkedin.LoginURL) {
		return false, linkedin.PageConnectionError
	}
	_ = m.engine.WaitStable(ctx, m.settle)

	if err := m.engine.Input(ctx, linkedin.LoginEmailSelector, m.account.Email); err != nil {
		m.log.WithError(err).Error("Failed to fill login email")
		return false, linkedin.PageUnknown
	}
	if err := m.engine.Input(ctx, linkedin.LoginPasswordSelector, m.account.Password); err != nil {
		m.log.WithError(err).Error("Failed to fill login password")
		return false, linkedin.PageUnknown
	}
	if err := m.engine.Click(ctx, linkedin.LoginSubmitSelector); err != nil {
		m.log.WithError(err).Error("Failed to submit login form")
		return false, linkedin.PageUnknown
	}
	_ = m.engine.WaitStable(ctx, m.settle)

	ok, kind := m.confirmLoggedIn(ctx)
	if ok {
		return true, kind
	}
	if kind == linkedin.PageCheckpoint {
		return false, kind
	}

	// The form sometimes lands on an interstitial; one feed visit settles it.
	if m.nav.Goto(ctx, linkedin.FeedURL) {
		_ = m.engine.WaitStable(ctx, m.settle)
		return m.confirmLoggedIn(ctx)
	}
	return false, kind
}

// manualLogin opens a visible browser and polls until the operator
// completes the login or the window times out.
func (m *Manager) manualLogin(ctx context.Context) bool {
	m.log.WithField("timeout", m.cfg.ManualLoginTimeout.String()).
		Info("Waiting for manual login in interactive browser")

	eng, err := m.interactive()
	if err != nil {
		m.log.WithError(err).Error("Failed to open interactive browser")
		return false
	}
	defer func() { _ = eng.Close() }()

	if _, err := eng.Navigate(ctx, linkedin.LoginURL, m.cfg.ManualLoginTimeout); err != nil {
		m.log.WithError(err).Error("Interactive browser failed to open login page")
		return false
	}

	deadline := m.now().Add(m.cfg.ManualLoginTimeout)
	poll := m.cfg.ManualLoginPoll
	if poll <= 0 {
		poll = 5 * time.Second
	}
	for m.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}

		if ok, _ := m.confirmOn(ctx, eng); !ok {
			continue
		}

		cookies, err := eng.Cookies()
		if err != nil {
			m.log.WithError(err).Error("Failed to read cookies after manual login")
			return false
		}
		if err := m.store.Save(cookies); err != nil {
			m.log.WithError(err).Warn("Failed to persist manually acquired cookies")
		}
		if err := m.engine.SetCookies(cookies); err != nil {
			m.log.WithError(err).Error("Failed to transfer session to scraping browser")
			return false
		}
		if !m.nav.Goto(ctx, linkedin.FeedURL) {
			return false
		}
		_ = m.engine.WaitStable(ctx, m.settle)
		ok, _ := m.confirmLoggedIn(ctx)
		return ok
	}

	m.log.Warn("Manual login window timed out")
	return false
}

// confirmLoggedIn evaluates the login heuristic on the scraping engine.
func (m *Manager) confirmLoggedIn(ctx context.Context) (bool, linkedin.PageKind) {
	return m.confirmOn(ctx, m.engine)
}

// confirmOn decides whether a page shows an authenticated session. A
// visible login form always wins over positive signals; otherwise the
// page must show enough authenticated chrome, with a lower bar when the
// URL itself is inside the authenticated area.
func (m *Manager) confirmOn(ctx context.Context, eng browser.Engine) (bool, linkedin.PageKind) {
	url := eng.CurrentURL()
	kind := linkedin.ClassifyURL(url)
	switch kind {
	case linkedin.PageLogin, linkedin.PageCheckpoint, linkedin.PageConnectionError:
		return false, kind
	}

	var signals linkedin.PageSignals
	if err := eng.Evaluate(ctx, linkedin.SignalsJS, &signals); err != nil {
		m.log.WithError(err).Debug("Signal evaluation failed")
		return false, kind
	}
	if signals.LoginForm {
		return false, linkedin.PageLogin
	}

	positives := signals.PositiveCount()
	if positives >= m.cfg.HeuristicMinSignals {
		return true, kind
	}
	if positives >= 1 && kind == linkedin.PageAuthenticated {
		return true, kind
	}
	return false, kind
}

// warnIfExpiring emits one advisory when the session cookie is inside
// the warning window.
func (m *Manager) warnIfExpiring(status Status) {
	if status.Code != StatusValid || status.DaysLeft > m.cfg.WarningThresholdDays {
		return
	}
	m.log.WithFields(map[string]interface{}{
		"days_left":  status.DaysLeft,
		"expires_at": status.ExpiresAt.Format(time.RFC3339),
	}).Warn("Session cookie approaching expiry, refresh it soon")
	if m.advisor != nil {
		m.advisor.CookieExpiryWarning(status.DaysLeft, status.ExpiresAt)
	}
}

// persistEngineCookies saves the live browser cookies after a fresh login.
func (m *Manager) persistEngineCookies() {
	cookies, err := m.engine.Cookies()
	if err != nil {
		m.log.WithError(err).Warn("Failed to read cookies after login")
		return
	}
	if err := m.store.Save(cookies); err != nil {
		m.log.WithError(err).Warn("Failed to persist session cookies")
	}
}

// currentStatus reads the live session cookie health from the engine.
func (m *Manager) currentStatus() Status {
	cookies, err := m.engine.Cookies()
	if err != nil {
		return Status{Code: StatusNoSessionCookie}
	}
	return CookieStatus(cookies, m.now())
}
