package linkedin

// PageSignals is the fixed-shape result of inspecting a loaded page for
// evidence of an authenticated session. No single DOM marker is reliable
// against a platform that varies its markup and injects checkpoints, so
// the session manager weighs several.
type PageSignals struct {
	NavBar        bool `json:"navBar"`
	ProfileMenu   bool `json:"profileMenu"`
	FeedContainer bool `json:"feedContainer"`
	SearchBox     bool `json:"searchBox"`
	Messaging     bool `json:"messaging"`
	LoginForm     bool `json:"loginForm"`
}

// PositiveCount returns how many positive login signals are present.
func (s PageSignals) PositiveCount() int {
	n := 0
	for _, v := range []bool{s.NavBar, s.ProfileMenu, s.FeedContainer, s.SearchBox, s.Messaging} {
		if v {
			n++
		}
	}
	return n
}

// SignalsJS inspects the loaded page for login signals. Selectors are
// best-effort; the multi-signal weighing compensates for markup drift.
const SignalsJS = `() => {
	const q = (sel) => document.querySelector(sel) !== null;
	return {
		navBar: q('.global-nav') || q('#global-nav') || q('[data-test-global-nav-link="feed"]'),
		profileMenu: q('.global-nav__me') || q('[data-control-name="nav.settings"]') || q('img.global-nav__me-photo'),
		feedContainer: q('.scaffold-finite-scroll') || q('[data-finite-scroll-hotkey-context="FEED"]') || q('.feed-container-theme'),
		searchBox: q('.search-global-typeahead') || q('input[placeholder*="Search"]') || q('[role="combobox"]'),
		messaging: q('.msg-overlay-bubble-header') || q('#messaging') || q('a[href*="/messaging/"]'),
		loginForm: q('form.login__form') || q('#session_key') || q('input[name="session_key"]'),
	};
}`

// Login form selectors used by the credential login strategy.
const (
	LoginEmailSelector    = "#username"
	LoginPasswordSelector = "#password"
	LoginSubmitSelector   = `button[type="submit"]`
)
