package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindTransport ErrorKind = "transport"
	KindSchema    ErrorKind = "schema"
)

// Sentinels usable with errors.Is against an *ExtractError of the same kind.
var (
	ErrTimeout   = errors.New("market: extract timeout")
	ErrRateLimit = errors.New("market: extract rate limited")
	ErrTransport = errors.New("market: extract transport failure")
	ErrSchema    = errors.New("market: unexpected response shape")
)

// ExtractError is returned by Source implementations.
type ExtractError struct {
	Kind       ErrorKind
	Op         string
	Status     int           // HTTP status when one was received
	RetryAfter time.Duration // upstream hint, rate limits only
	Err        error
}

func (e *ExtractError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *ExtractError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrRateLimit:
		return e.Kind == KindRateLimit
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrSchema:
		return e.Kind == KindSchema
	}
	return false
}

// Retryable reports whether the failure is transient.
func (e *ExtractError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindTransport:
		return true
	default:
		return false
	}
}

// NewExtractError builds an ExtractError of the given kind.
func NewExtractError(kind ErrorKind, op string, err error) *ExtractError {
	return &ExtractError{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether err wraps a retryable ExtractError.
func IsRetryable(err error) bool {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Retryable()
	}
	return false
}

// EmptyBatchError signals that Transform was handed nothing to transform.
type EmptyBatchError struct {
	Source string
}

func (e *EmptyBatchError) Error() string {
	if e.Source == "" {
		return "market: empty raw batch"
	}
	return fmt.Sprintf("market: empty raw batch from %s", e.Source)
}
