package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookies(t *testing.T) {
	blob := `[
		{"name": "li_at", "value": "tok", "domain": ".linkedin.com", "expires": 1767225600},
		{"name": "JSESSIONID", "value": "\"ajax:1\"", "expirationDate": 1767225600.5},
		{"name": "lidc", "value": "b=1", "expiry": 1767225600000},
		{"name": "", "value": "dropped"},
		{"name": "bare", "value": "x"}
	]`

	cookies, err := ParseCookies([]byte(blob))
	require.NoError(t, err)
	require.Len(t, cookies, 4)

	assert.Equal(t, "li_at", cookies[0].Name)
	assert.Equal(t, float64(1767225600), cookies[0].Expires)

	// expirationDate arrives in seconds with a fractional part.
	assert.InDelta(t, 1767225600.5, cookies[1].Expires, 0.001)

	// A millisecond timestamp is scaled down to seconds.
	assert.Equal(t, float64(1767225600), cookies[2].Expires)

	// Missing domain and path get the platform defaults.
	assert.Equal(t, ".linkedin.com", cookies[3].Domain)
	assert.Equal(t, "/", cookies[3].Path)
	assert.Zero(t, cookies[3].Expires)
}

func TestParseCookiesInvalid(t *testing.T) {
	_, err := ParseCookies([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestCookieStatus(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		blob     string
		wantCode StatusCode
		wantDays int
	}{
		{
			name:     "no session cookie",
			blob:     `[{"name": "lidc", "value": "x"}]`,
			wantCode: StatusNoSessionCookie,
		},
		{
			name:     "no expiry",
			blob:     `[{"name": "li_at", "value": "tok"}]`,
			wantCode: StatusNoExpiry,
		},
		{
			name:     "expired",
			blob:     `[{"name": "li_at", "value": "tok", "expires": 1704067200}]`,
			wantCode: StatusExpired,
		},
		{
			name: "valid with days left",
			// 2026-01-20, ten days past now.
			blob:     `[{"name": "li_at", "value": "tok", "expires": 1768910400}]`,
			wantCode: StatusValid,
			wantDays: 10,
		},
		{
			name: "valid from millisecond expiry",
			blob:     `[{"name": "li_at", "value": "tok", "expires": 1768910400000}]`,
			wantCode: StatusValid,
			wantDays: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies, err := ParseCookies([]byte(tt.blob))
			require.NoError(t, err)

			status := CookieStatus(cookies, now)
			assert.Equal(t, tt.wantCode, status.Code)
			if tt.wantCode == StatusValid {
				assert.Equal(t, tt.wantDays, status.DaysLeft)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "NO_SESSION_COOKIE", Status{Code: StatusNoSessionCookie}.String())
	assert.Equal(t, "EXPIRED", Status{Code: StatusExpired}.String())
	assert.Equal(t, "VALID_3_DAYS_LEFT", Status{Code: StatusValid, DaysLeft: 3}.String())
}

func TestStatusUsable(t *testing.T) {
	assert.True(t, Status{Code: StatusValid}.Usable())
	assert.True(t, Status{Code: StatusNoExpiry}.Usable())
	assert.False(t, Status{Code: StatusExpired}.Usable())
	assert.False(t, Status{Code: StatusNoSessionCookie}.Usable())
}
