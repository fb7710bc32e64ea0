package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a failed attempt.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindServer
	KindClient
	KindNetwork
	KindDecode
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrExhausted matches errors returned after every attempt failed.
var ErrExhausted = errors.New("fetch: retries exhausted")

// Error is the only error type returned by Client. Callers should rely on
// its fields and never on the underlying transport error.
type Error struct {
	Kind      Kind
	URL       string
	Status    int
	Retryable bool
	Attempts  int
	Exhausted bool
	Message   string

	err error
}

func (e *Error) Error() string {
	prefix := "fetch " + e.URL
	if e.Exhausted {
		prefix = fmt.Sprintf("fetch %s: failed after %d attempts", e.URL, e.Attempts)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s error %d: %s", prefix, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", prefix, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	return target == ErrExhausted && e.Exhausted
}

// IsRetryable reports whether err is a *Error whose kind would be retried.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

func classifyStatus(status int) (Kind, bool) {
	switch {
	case status == 429 || status >= 500:
		return KindServer, true
	default:
		return KindClient, false
	}
}
