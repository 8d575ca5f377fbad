package advice

import (
	"fmt"
	"net/http"
)

// Kind classifies why an advice request failed.
type Kind int

const (
	KindNotConfigured Kind = iota + 1
	KindTransport
	KindStatus
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not configured"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error is returned by GetAdvice for every failure. Body holds the raw
// response body when the service answered at all.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("advice: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case KindNotConfigured:
		return "advice: no API key configured"
	}
	if e.Err != nil {
		return fmt.Sprintf("advice: %s: %v", e.Kind, e.Err)
	}
	return "advice: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }
