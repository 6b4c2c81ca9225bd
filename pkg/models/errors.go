package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a resolution or delivery failure.
type ErrorKind string

// Error kinds
const (
	// Resolution failures, surfaced verbatim from connectors.
	ErrNotFound            ErrorKind = "not_found"
	ErrPrivateOrRestricted ErrorKind = "private_or_restricted"
	ErrUnsupported         ErrorKind = "unsupported"
	ErrUpstreamError       ErrorKind = "upstream_error"

	// Delivery failures.
	ErrNoMatchingFormat    ErrorKind = "no_matching_format"
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"
	ErrMergeFailed         ErrorKind = "merge_failed"
	ErrCancelled           ErrorKind = "cancelled"

	// Local faults: workspace or artifact I/O on this host, nothing the
	// upstream or the merge process did.
	ErrInternal ErrorKind = "internal"
)

// Error is a classified failure with human-readable detail.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// WrapError creates a classified error around an underlying cause.
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the error kind, translating context cancellation and
// deadline expiry into ErrCancelled. Unclassified errors report
// ErrUpstreamError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return ErrUpstreamError
}

// HTTPStatus maps an error kind to the status code of the HTTP
// boundary.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrPrivateOrRestricted:
		return http.StatusForbidden
	case ErrUnsupported:
		return http.StatusBadRequest
	case ErrNoMatchingFormat:
		return http.StatusUnprocessableEntity
	case ErrUpstreamUnavailable, ErrMergeFailed, ErrUpstreamError:
		return http.StatusBadGateway
	case ErrCancelled:
		return 499 // client closed request
	case ErrInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DetailOf returns the human-readable detail of a classified error, or
// the raw error text for unclassified ones.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return err.Error()
}
