package ports

import (
	"errors"
	"fmt"
)

// CompletionErrorKind classifies AI provider failures.
type CompletionErrorKind string

const (
	KindRateLimit  CompletionErrorKind = "rate_limit"
	KindNotFound   CompletionErrorKind = "not_found"
	KindBadRequest CompletionErrorKind = "bad_request"
	KindAuth       CompletionErrorKind = "auth"
	KindServer     CompletionErrorKind = "server"
	KindTransport  CompletionErrorKind = "transport"
)

// CompletionError is returned by CompletionClient implementations.
type CompletionError struct {
	Kind   CompletionErrorKind
	Model  string
	Status int
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion %s (model %s, status %d): %v", e.Kind, e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("completion %s (model %s): %v", e.Kind, e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to a completion error kind.
func KindForStatus(status int) CompletionErrorKind {
	switch {
	case status == 429:
		return KindRateLimit
	case status == 404:
		return KindNotFound
	case status == 400 || status == 422:
		return KindBadRequest
	case status == 401 || status == 402 || status == 403:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindTransport
	}
}

// CompletionKind extracts the kind of a completion error, or "" when err is another error.
func CompletionKind(err error) CompletionErrorKind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether the same model may be retried after a delay.
func IsRetryable(err error) bool {
	return CompletionKind(err) == KindRateLimit
}
