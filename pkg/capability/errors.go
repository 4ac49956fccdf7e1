package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies a capability failure for retry decisions.
type ErrorType int8

const (
	// ErrorTypeTransient covers timeouts, 5xx, and connection failures. Retried.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeRateLimit covers 429 and quota errors. Retried.
	ErrorTypeRateLimit
	// ErrorTypeInvalidResult covers structurally invalid capability output
	// (e.g. a split with fewer than two artifacts). Never retried; the
	// router treats it as an invariant violation.
	ErrorTypeInvalidResult
	// ErrorTypeAuth covers bad credentials. Never retried.
	ErrorTypeAuth
	// ErrorTypeUnknown is the default for unclassified failures.
	ErrorTypeUnknown
)

// String returns the classification name.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeInvalidResult:
		return "invalid_result"
	case ErrorTypeAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a classified capability failure.
type Error struct {
	Type ErrorType
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s capability %s error: %v", e.Kind, e.Type, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class should be retried.
func (e *Error) Retryable() bool {
	return e.Type == ErrorTypeTransient || e.Type == ErrorTypeRateLimit || e.Type == ErrorTypeUnknown
}

// NewError wraps an underlying error with a classification.
func NewError(t ErrorType, kind Kind, err error) *Error {
	return &Error{Type: t, Kind: kind, Err: err}
}

// NewInvalidResult builds a non-retryable structural failure.
func NewInvalidResult(kind Kind, format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInvalidResult, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsInvalidResult reports whether err carries the invalid-result classification.
func IsInvalidResult(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Type == ErrorTypeInvalidResult
}

// Classify maps an arbitrary error onto a capability Error. Already
// classified errors pass through; context deadline expiry becomes transient
// (the per-call timeout elapsed), while caller cancellation stays unwrapped
// so the loop can observe it.
func Classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTransient, kind, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return NewError(ErrorTypeRateLimit, kind, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "temporar") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "500"):
		return NewError(ErrorTypeTransient, kind, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key"):
		return NewError(ErrorTypeAuth, kind, err)
	default:
		return NewError(ErrorTypeUnknown, kind, err)
	}
}

// ShouldRetry is the retry classifier used by the resilience wrappers. A
// classified error answers for itself; this matters for per-attempt timeouts,
// which wrap a deadline error but are transient by classification. An
// unclassified cancellation or deadline expiry means the caller's own budget
// is gone and is never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
