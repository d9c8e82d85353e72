package datamall

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned by every fetch when no account key is configured.
var ErrMissingAPIKey = errors.New("datamall: account key not configured")

// ErrMissingValue is wrapped by parse errors for 2xx bodies without a value array.
var ErrMissingValue = errors.New("datamall: response has no value array")

// Kind classifies a failed upstream request.
type Kind int

const (
	KindTransport   Kind = iota // network error or attempt timeout
	KindRateLimited             // HTTP 429
	KindServer                  // HTTP 5xx
	KindClient                  // any other non-2xx
	KindParse                   // 2xx with a body that is not the expected JSON
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RemoteError is the error returned by Client.Get once a request has
// permanently failed or the retry budget is spent.
type RemoteError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int           // zero for transport errors
	RetryAfter time.Duration // server-advertised floor, 429 only
	Attempts   int
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("datamall %s: %s error after %d attempt(s): %v", e.Endpoint, e.Kind, e.Attempts, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *RemoteError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// IsKind reports whether err wraps a RemoteError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == kind
}
