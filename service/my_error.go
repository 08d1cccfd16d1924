package service

import (
	"errors"
	"fmt"
)

const (
	// ErrInternalServerError means that an internal server error has occurred.
	ErrInternalServerError = "internal_server_error"
	// ErrMalformed means that a message could not be decoded or does not match the protocol.
	ErrMalformed = "malformed"
	// ErrUnsupportedVersion means that a message carries a protocol version this server does not speak.
	ErrUnsupportedVersion = "unsupported_version"
	// ErrStaleGeneration means that the caller presented a superseded generation and must register again.
	ErrStaleGeneration = "stale_generation"
	// ErrUnknownIdentity means that the identity expired or never existed.
	ErrUnknownIdentity = "unknown_identity"
	// ErrForbidden means that the session may not speak for the identity.
	ErrForbidden = "forbidden"
	// ErrRateLimited means that the caller exceeded its message rate.
	ErrRateLimited = "rate_limited"
	// ErrInvariantViolation means that the registry detected an internal inconsistency.
	ErrInvariantViolation = "invariant_violation"
	// ErrNotFound means that no route matches the request.
	ErrNotFound = "not_found"
)

// MyError represents an error within the context of masterserver services.
type MyError struct {
	// Code is a machine-readable code.
	Code string `json:"code,omitempty"`
	// Message is a human-readable message.
	Message string `json:"message"`
	// Inner is a wrapped error that is never shown to API consumers.
	Inner error `json:"-"`
}

// NewMyError creates a new MyError.
func NewMyError(code string, message string, inner error) *MyError {
	return &MyError{
		Code:    code,
		Message: message,
		Inner:   inner,
	}
}

func NewInternalServerError(message string, inner error) *MyError {
	myInner := ToMyError(inner)
	if myInner != nil {
		return myInner
	}

	return NewMyError(ErrInternalServerError, message, inner)
}

func NewMalformedError(message string, inner error) *MyError {
	myInner := ToMyError(inner)
	if myInner != nil {
		return myInner
	}

	return NewMyError(ErrMalformed, message, inner)
}

func NewUnsupportedVersionError(got, want int) *MyError {
	return NewMyError(ErrUnsupportedVersion, fmt.Sprintf("protocol version %d is not supported, use %d", got, want), nil)
}

func NewStaleGenerationError(message string) *MyError {
	return NewMyError(ErrStaleGeneration, message, nil)
}

func NewUnknownIdentityError(message string) *MyError {
	return NewMyError(ErrUnknownIdentity, message, nil)
}

func NewForbiddenError(message string) *MyError {
	return NewMyError(ErrForbidden, message, nil)
}

func NewRateLimitedError(message string) *MyError {
	return NewMyError(ErrRateLimited, message, nil)
}

func NewInvariantViolationError(message string, inner error) *MyError {
	return NewMyError(ErrInvariantViolation, message, inner)
}

func (e MyError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Inner)
	}

	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// Unwrap the error returning the error's reason.
func (e MyError) Unwrap() error {
	return e.Inner
}

// ToMyError returns a pointer to a masterserver error, or nil if it is not a masterserver error.
func ToMyError(err error) *MyError {
	var e *MyError
	if errors.As(err, &e) {
		return e
	}

	return nil
}

// ToMyErrorCode returns the code of the error, if available.
func ToMyErrorCode(err error) string {
	myerror := ToMyError(err)
	if myerror != nil {
		return myerror.Code
	}
	return ""
}

func IsMyError(err error, code string) bool {
	myerror := ToMyError(err)
	if myerror != nil {
		return myerror.Code == code
	}
	return false
}

func IsInternalServerError(err error) bool {
	return IsMyError(err, ErrInternalServerError)
}

func IsMalformedError(err error) bool {
	return IsMyError(err, ErrMalformed)
}

func IsStaleGenerationError(err error) bool {
	return IsMyError(err, ErrStaleGeneration)
}

func IsUnknownIdentityError(err error) bool {
	return IsMyError(err, ErrUnknownIdentity)
}

func IsForbiddenError(err error) bool {
	return IsMyError(err, ErrForbidden)
}

func IsInvariantViolationError(err error) bool {
	return IsMyError(err, ErrInvariantViolation)
}
