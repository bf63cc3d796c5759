// Package domainerrors defines the coded error taxonomy shared by every
// feature vertical. Services return these so transport layers can map them
// to wire responses without inspecting error strings.
//
// Stores do NOT return domain errors; they return pkg/platform/sentinel
// errors and services translate.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for machine-readable handling by clients.
type Code string

const (
	// CodeInvalidRequest covers malformed input: bad tenant ids, malformed
	// mutation envelopes, unrecognized replay parameters.
	CodeInvalidRequest Code = "invalid_request"
	// CodeUnauthorized means the caller presented no (or invalid) credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means the caller is authenticated but holds no membership
	// in the tenant and is not a system admin.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the target entity does not exist. Distinct from
	// CodeConflict so client reconciliation can branch on it.
	CodeNotFound Code = "not_found"
	// CodeConflict means an optimistic-concurrency version mismatch; the
	// client must refetch and retry.
	CodeConflict Code = "conflict"
	// CodeSyncFailed means an upstream change-log fetch failed.
	CodeSyncFailed Code = "sync_failed"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Details is optional structured context
// (for example the current entity version on a conflict).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails returns a copy of the error carrying structured context.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeSyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
