package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Error is one of the categorical outcomes every operation resolves to.
// The status string is part of the wire contract; the HTTP code rides along
// so handlers never maintain a separate mapping.
type Error struct {
	status string
	code   int
	msg    string
}

var (
	ErrUnauthorized        = &Error{status: "unauthorized", code: fiber.StatusUnauthorized}
	ErrPermissionDenied    = &Error{status: "permission_denied", code: fiber.StatusForbidden}
	ErrNotFound            = &Error{status: "not_found", code: fiber.StatusNotFound}
	ErrDuplicateName       = &Error{status: "duplicate_name", code: fiber.StatusConflict}
	ErrCycleDetected       = &Error{status: "cycle_detected", code: fiber.StatusConflict}
	ErrTransferralRejected = &Error{status: "transferral_rejected", code: fiber.StatusUnprocessableEntity}
	ErrUnmovableDirectory  = &Error{status: "unmovable_directory", code: fiber.StatusUnprocessableEntity}
	ErrNotEmpty            = &Error{status: "not_empty", code: fiber.StatusUnprocessableEntity}
	ErrInvalidSubject      = &Error{status: "invalid_subject", code: fiber.StatusUnprocessableEntity}
	ErrInvalidContact      = &Error{status: "invalid_contact", code: fiber.StatusUnprocessableEntity}
	ErrQuotaExceeded       = &Error{status: "quota_exceeded", code: fiber.StatusRequestEntityTooLarge}
	ErrInternal            = &Error{status: "internal_error", code: fiber.StatusInternalServerError}
)

// BadRequest returns a malformed_request error carrying a caller-facing
// message describing which parameter was rejected.
func BadRequest(msg string) *Error {
	return &Error{status: "malformed_request", code: fiber.StatusBadRequest, msg: msg}
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.status + ": " + e.msg
	}
	return e.status
}

func (e *Error) Status() string { return e.status }

func (e *Error) HTTPStatus() int { return e.code }

// Message is the optional human-readable detail exposed to the caller.
// Only malformed_request responses carry one.
func (e *Error) Message() string { return e.msg }

// Is matches by status so wrapped and parameterized instances compare equal
// to the sentinels above.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.status == other.status
}

// IsBadRequest reports whether err resolves to malformed_request.
func IsBadRequest(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.status == "malformed_request"
}

// From extracts the categorical error from err, or nil when err is not one.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
