package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures reported by outbound LinkedIn calls
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindTransport    Kind = "transport"
)

// Error is the FetchError returned by the profile fetcher and action executor
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("linkedin %s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("linkedin %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, errs.ErrRateLimited) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// New creates a FetchError of the given kind
func New(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// Wrap creates a FetchError that keeps the underlying cause
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Kind sentinels for errors.Is comparisons
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrTransport    = &Error{Kind: KindTransport}
)

// Credential and campaign errors
var (
	ErrCredentialMalformed  = errors.New("credential malformed")
	ErrCredentialRejected   = errors.New("credential rejected")
	ErrValidatorUnavailable = errors.New("validator unavailable")
	ErrNoCredential         = errors.New("no credential stored")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrInvalidTransition    = errors.New("invalid campaign transition")
	ErrInvalidCampaign      = errors.New("invalid campaign")
	ErrEmptyMessage         = errors.New("message body is empty")
)

// KindOf extracts the FetchError kind from err, if any
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a FetchError of the given kind
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRetryable checks if an error kind should be retried later
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindTransport, KindRateLimited:
		return true
	default:
		return false
	}
}

// KindFromStatus maps an HTTP status code to a FetchError kind.
// ok is false for 2xx/3xx responses.
func KindFromStatus(statusCode int) (kind Kind, ok bool) {
	switch {
	case statusCode < 400:
		return "", false
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindUnauthorized, true
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return KindNotFound, true
	case statusCode == http.StatusTooManyRequests, statusCode == 999:
		// LinkedIn answers throttled clients with a non-standard 999
		return KindRateLimited, true
	default:
		return KindTransport, true
	}
}
