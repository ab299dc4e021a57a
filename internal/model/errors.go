package model

import (
	"errors"
	"fmt"
)

// Store level sentinels. Services translate them into coded errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Code classifies an error for callers and transports.
type Code string

const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeAborted            Code = "ABORTED"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Field   string
	Message string
	Err     error
	// ShowCause lets transports include Err in the client-facing message.
	ShowCause bool
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a coded error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds a coded error around cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func Unauthenticated(message string) *Error { return NewError(CodeUnauthenticated, message) }

func PermissionDenied(message string) *Error { return NewError(CodePermissionDenied, message) }

// InvalidArgument reports a bad value for field.
func InvalidArgument(field, message string) *Error {
	return &Error{Code: CodeInvalidArgument, Field: field, Message: message}
}

func NotFound(message string) *Error { return WrapError(CodeNotFound, message, ErrNotFound) }

func AlreadyExists(message string) *Error { return NewError(CodeAlreadyExists, message) }

func FailedPrecondition(message string) *Error { return NewError(CodeFailedPrecondition, message) }

// Internal hides cause from clients; it is only logged.
func Internal(message string, cause error) *Error { return WrapError(CodeInternal, message, cause) }

// Upstream is an Internal error whose cause is safe to show, such as a
// failure reported by the AI backend.
func Upstream(message string, cause error) *Error {
	e := WrapError(CodeInternal, message, cause)
	e.ShowCause = true
	return e
}

// CodeOf extracts the classification of err. Bare store sentinels map to
// their codes and anything unknown is Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeAborted
	}
	return CodeInternal
}

// IsCode reports whether err is classified as code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// MessageOf returns the client-facing part of err without the code prefix.
// Causes of internal errors are withheld unless marked safe to show.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Field != "" {
			msg = e.Field + ": " + msg
		}
		if e.ShowCause && e.Err != nil {
			msg = msg + ": " + e.Err.Error()
		}
		return msg
	}
	if CodeOf(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}
