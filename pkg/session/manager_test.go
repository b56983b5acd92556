package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/config"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
)

// scriptedEngine replays a sequence of page states. Every login
// confirmation consumes one (url, signals) pair; the last pair repeats.
type scriptedEngine struct {
	urls    []string
	signals []linkedin.PageSignals
	idx     int

	setCalls   int
	clearCalls int
	inputs     map[string]string
	clicks     []string
	cookies    []browser.Cookie
}

func (e *scriptedEngine) cur() int {
	i := e.idx
	if i >= len(e.urls) {
		i = len(e.urls) - 1
	}
	return i
}

func (e *scriptedEngine) Navigate(ctx context.Context, url string, timeout time.Duration) (browser.NavResult, error) {
	return browser.NavResult{URL: url, Status: 200}, nil
}

func (e *scriptedEngine) CurrentURL() string {
	if len(e.urls) == 0 {
		return ""
	}
	return e.urls[e.cur()]
}

func (e *scriptedEngine) SetCookies(cookies []browser.Cookie) error {
	e.setCalls++
	e.cookies = cookies
	return nil
}

func (e *scriptedEngine) Cookies() ([]browser.Cookie, error) { return e.cookies, nil }

func (e *scriptedEngine) ClearCookies() error {
	e.clearCalls++
	return nil
}

func (e *scriptedEngine) Evaluate(ctx context.Context, js string, out interface{}) error {
	if sig, ok := out.(*linkedin.PageSignals); ok && len(e.signals) > 0 {
		i := e.idx
		if i >= len(e.signals) {
			i = len(e.signals) - 1
		}
		*sig = e.signals[i]
	}
	e.idx++
	return nil
}

func (e *scriptedEngine) Input(ctx context.Context, selector, text string) error {
	if e.inputs == nil {
		e.inputs = make(map[string]string)
	}
	e.inputs[selector] = text
	return nil
}

func (e *scriptedEngine) Click(ctx context.Context, selector string) error {
	e.clicks = append(e.clicks, selector)
	return nil
}

func (e *scriptedEngine) WaitStable(ctx context.Context, d time.Duration) error { return nil }
func (e *scriptedEngine) Close() error                                          { return nil }

// recordingNav always completes navigations and records the targets.
type recordingNav struct {
	targets []string
}

func (n *recordingNav) Goto(ctx context.Context, url string) bool {
	n.targets = append(n.targets, url)
	return true
}

// memStore is an in-memory cookie store.
type memStore struct {
	cookies []browser.Cookie
	saves   int
}

func (s *memStore) Name() string { return "mem" }

func (s *memStore) Load() ([]browser.Cookie, error) {
	if len(s.cookies) == 0 {
		return nil, ErrNoCookies
	}
	return s.cookies, nil
}

func (s *memStore) Save(cookies []browser.Cookie) error {
	s.saves++
	s.cookies = cookies
	return nil
}

func (s *memStore) Clear() error {
	s.cookies = nil
	return nil
}

type countingAdvisor struct {
	warnings int
	daysLeft int
}

func (a *countingAdvisor) CookieExpiryWarning(daysLeft int, expiresAt time.Time) {
	a.warnings++
	a.daysLeft = daysLeft
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		WarningThresholdDays: 5,
		ManualLoginEnabled:   false,
		ManualLoginTimeout:   time.Minute,
		ManualLoginPoll:      time.Millisecond,
		HeuristicMinSignals:  2,
	}
}

func sessionCookieSet(expires float64) []browser.Cookie {
	return []browser.Cookie{{
		Name:    linkedin.SessionCookieName,
		Value:   "tok",
		Domain:  linkedin.CookieDomain,
		Expires: expires,
	}}
}

func loggedInSignals() linkedin.PageSignals {
	return linkedin.PageSignals{NavBar: true, FeedContainer: true}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAcquireExpiredCookiesNeverVerifiedViaReuse(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &memStore{cookies: sessionCookieSet(float64(now.AddDate(0, 0, -1).Unix()))}

	// The page would confirm a login if asked; an expired cookie set must
	// never get that far.
	eng := &scriptedEngine{
		urls:    []string{linkedin.FeedURL},
		signals: []linkedin.PageSignals{loggedInSignals()},
	}
	nav := &recordingNav{}

	m := NewManager(testSessionConfig(), config.LinkedInConfig{}, eng, nav,
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)))

	res, err := m.AcquireSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StrategyNone, res.Strategy)
	assert.Equal(t, StatusExpired, res.Status.Code)
	assert.Zero(t, eng.setCalls, "expired cookies must not be applied to the browser")
	assert.Empty(t, nav.targets)
}

func TestAcquireWarnsOnceWhenCookieNearExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	// Three days left against a five day warning threshold.
	store := &memStore{cookies: sessionCookieSet(float64(now.AddDate(0, 0, 3).Unix()))}

	eng := &scriptedEngine{
		urls:    []string{linkedin.FeedURL},
		signals: []linkedin.PageSignals{loggedInSignals()},
	}
	advisor := &countingAdvisor{}

	m := NewManager(testSessionConfig(), config.LinkedInConfig{}, eng, &recordingNav{},
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)), WithAdvisor(advisor))

	res, err := m.AcquireSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, StrategyCookieReuse, res.Strategy)
	assert.Equal(t, 1, advisor.warnings)
	assert.Equal(t, 3, advisor.daysLeft)
}

func TestAcquireNoWarningOutsideThreshold(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &memStore{cookies: sessionCookieSet(float64(now.AddDate(0, 0, 30).Unix()))}

	eng := &scriptedEngine{
		urls:    []string{linkedin.FeedURL},
		signals: []linkedin.PageSignals{loggedInSignals()},
	}
	advisor := &countingAdvisor{}

	m := NewManager(testSessionConfig(), config.LinkedInConfig{}, eng, &recordingNav{},
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)), WithAdvisor(advisor))

	res, err := m.AcquireSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateVerified, res.State)
	assert.Zero(t, advisor.warnings)
}

func TestAcquireReuseRetriesOnceBeforeGivingUp(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &memStore{cookies: sessionCookieSet(float64(now.AddDate(0, 0, 30).Unix()))}

	// First load renders nothing, the reload shows the feed.
	eng := &scriptedEngine{
		urls:    []string{linkedin.FeedURL, linkedin.FeedURL},
		signals: []linkedin.PageSignals{{}, loggedInSignals()},
	}
	nav := &recordingNav{}

	m := NewManager(testSessionConfig(), config.LinkedInConfig{}, eng, nav,
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)))

	res, err := m.AcquireSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StrategyCookieReuse, res.Strategy)
	assert.Len(t, nav.targets, 2)
}

func TestAcquireFallsBackToCredentialLogin(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// No stored cookies at all; the login form succeeds.
	eng := &scriptedEngine{
		urls:    []string{linkedin.FeedURL},
		signals: []linkedin.PageSignals{loggedInSignals()},
		cookies: sessionCookieSet(float64(now.AddDate(0, 0, 30).Unix())),
	}
	nav := &recordingNav{}
	store := &memStore{}

	account := config.LinkedInConfig{Email: "user@example.com", Password: "hunter2"}
	m := NewManager(testSessionConfig(), account, eng, nav,
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)))

	res, err := m.AcquireSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, StrategyCredentialLogin, res.Strategy)
	assert.Equal(t, "user@example.com", eng.inputs[linkedin.LoginEmailSelector])
	assert.Equal(t, "hunter2", eng.inputs[linkedin.LoginPasswordSelector])
	assert.Contains(t, nav.targets, linkedin.LoginURL)
	assert.Equal(t, 1, store.saves, "fresh session cookies must be persisted")
}

func TestAcquireCheckpointBlocksReuse(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &memStore{cookies: sessionCookieSet(float64(now.AddDate(0, 0, 30).Unix()))}

	eng := &scriptedEngine{
		urls:    []string{"https://www.linkedin.com/checkpoint/challenge/x"},
		signals: []linkedin.PageSignals{{}},
	}

	m := NewManager(testSessionConfig(), config.LinkedInConfig{}, eng, &recordingNav{},
		NewChainOf(logger.NewNopLogger(), store), logger.NewNopLogger(),
		WithClock(fixedNow(now)))

	res, err := m.AcquireSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestConfirmRequiresMinimumSignals(t *testing.T) {
	cfg := testSessionConfig()
	cfg.HeuristicMinSignals = 2

	tests := []struct {
		name    string
		url     string
		signals linkedin.PageSignals
		want    bool
	}{
		{
			name:    "two positives anywhere",
			url:     "https://www.linkedin.com/something",
			signals: linkedin.PageSignals{NavBar: true, SearchBox: true},
			want:    true,
		},
		{
			name:    "one positive on authenticated url",
			url:     linkedin.FeedURL,
			signals: linkedin.PageSignals{NavBar: true},
			want:    true,
		},
		{
			name:    "one positive on unknown url",
			url:     "https://www.linkedin.com/something",
			signals: linkedin.PageSignals{NavBar: true},
			want:    false,
		},
		{
			name:    "login form overrides positives",
			url:     linkedin.FeedURL,
			signals: linkedin.PageSignals{NavBar: true, FeedContainer: true, LoginForm: true},
			want:    false,
		},
		{
			name:    "login url rejected before signals",
			url:     "https://www.linkedin.com/login",
			signals: linkedin.PageSignals{NavBar: true, FeedContainer: true},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &scriptedEngine{
				urls:    []string{tt.url},
				signals: []linkedin.PageSignals{tt.signals},
			}
			m := NewManager(cfg, config.LinkedInConfig{}, eng, &recordingNav{},
				NewChainOf(logger.NewNopLogger(), &memStore{}), logger.NewNopLogger())

			ok, _ := m.confirmLoggedIn(context.Background())
			assert.Equal(t, tt.want, ok)
		})
	}
}
