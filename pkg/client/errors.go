package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies API client failures per the recovery policy the
// orchestrator applies: auth and initial unreachability are fatal, the
// rest are recoverable at the analyzer boundary.
type ErrorKind string

const (
	KindUnreachable     ErrorKind = "unreachable"
	KindTLS             ErrorKind = "tls_error"
	KindAuth            ErrorKind = "auth_error"
	KindEndpointMissing ErrorKind = "endpoint_missing"
	KindNotAvailable    ErrorKind = "not_available"
	KindRetryExhausted  ErrorKind = "retry_exhausted"
	KindMalformed       ErrorKind = "malformed_response"
	KindBudget          ErrorKind = "budget_exhausted"
	KindInternal        ErrorKind = "internal"
)

// ErrNotAvailable marks a 404 on an optional endpoint. It is a sentinel,
// not a failure: callers skip the derived check and continue.
var ErrNotAvailable = errors.New("endpoint not available on this deployment")

// APIError is the typed error carried out of every client operation.
type APIError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("cribl api: %s %s", e.Kind, e.Endpoint)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotAvailable) work for optional-endpoint 404s.
func (e *APIError) Is(target error) bool {
	return target == ErrNotAvailable && e.Kind == KindNotAvailable
}

func apiErr(kind ErrorKind, endpoint string, status int, err error) *APIError {
	return &APIError{Kind: kind, Endpoint: endpoint, StatusCode: status, Err: err}
}

// KindOf extracts the error kind, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsFatal reports whether the error must abort the whole run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindUnreachable, KindTLS:
		return true
	}
	return false
}
