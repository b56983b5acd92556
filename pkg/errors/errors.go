package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeConfig covers startup misconfiguration: missing mandatory
	// proxy, missing credentials. Always fatal before any navigation.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnectivity covers proxy and browser-internal network
	// failures (chrome-error pages, unreachable egress).
	ErrorTypeConnectivity ErrorType = "connectivity"
	// ErrorTypeAuth covers rejected cookies, failed credential login and
	// manual-login timeouts. Fatal for the run, not the process.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeBlocked indicates the platform answered with a checkpoint
	// or otherwise refused the session. Never retried blindly.
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeNavigation covers HTTP-level rejections during page loads.
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeExtraction covers per-source DOM extraction failures.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypePersistence covers record-store failures during existence
	// checks or inserts.
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a scraper error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without an HTTP code.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a typed error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WithCode attaches an HTTP status code to the error.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConnectivity, ErrorTypeNavigation:
		return true
	case ErrorTypeConfig, ErrorTypeAuth, ErrorTypeBlocked, ErrorTypeExtraction, ErrorTypePersistence:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// IsFatal reports whether an error type must abort the run entirely.
// Per-source and persistence failures degrade to partial completion.
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConfig, ErrorTypeAuth:
		return true
	default:
		return false
	}
}
