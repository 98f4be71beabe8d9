package bridge

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a bridge failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"      // no response within the configured ceiling
	KindHTTPStatus  Kind = "http_status"  // non-2xx response
	KindConnect     Kind = "connect"      // endpoint unreachable
	KindBadResponse Kind = "bad_response" // 2xx with an unexpected body
	KindUnknown     Kind = "unknown"
)

// Error is a classified bridge failure.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("bridge %s: status %d after %s", e.Endpoint, e.StatusCode, e.Elapsed.Round(100*time.Millisecond))
	case KindConnect:
		return fmt.Sprintf("bridge %s: connect: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("bridge %s: %s after %s: %v", e.Endpoint, e.Kind, e.Elapsed.Round(100*time.Millisecond), e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage renders the failure as a human-readable answer.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("⏱️ Request timed out after %.1f seconds. The query might be too complex or the server is busy.",
			e.Elapsed.Seconds())
	case KindHTTPStatus:
		return fmt.Sprintf("❌ Bridge returned error %d. Please check if the bridge is running properly.", e.StatusCode)
	case KindConnect:
		return fmt.Sprintf("❌ Cannot connect to MCP Bridge at %s. Please verify:\n- Bridge is running\n- URL is correct\n- Network is accessible",
			e.Endpoint)
	case KindBadResponse:
		return "❌ Unexpected response format from bridge"
	default:
		return fmt.Sprintf("❌ Unexpected error: %v", e.Err)
	}
}

// UserMessage renders any error returned by Complete as a human-readable
// answer. It never returns an empty string.
func UserMessage(err error) string {
	var bErr *Error
	if errors.As(err, &bErr) {
		return bErr.UserMessage()
	}
	if err == nil {
		return "❌ Unexpected error: empty response"
	}
	return fmt.Sprintf("❌ Unexpected error: %v", err)
}
