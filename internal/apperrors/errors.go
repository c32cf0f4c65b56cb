package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transport layers can map it to a status code
// without string matching.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation_error"
	KindDecryption   Kind = "decryption_error"
	KindDependency   Kind = "dependency_failure"
)

type Error struct {
	Kind    Kind
	Message string
	// IDs carries the offending identifiers for bulk operations.
	IDs []uint
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match any error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(what string) *Error    { return &Error{Kind: KindNotFound, Message: what + " not found"} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }
func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }

func ForbiddenIDs(msg string, ids []uint) *Error {
	return &Error{Kind: KindForbidden, Message: msg, IDs: ids}
}

func Decryption(err error) *Error {
	return &Error{Kind: KindDecryption, Message: "decryption failed", Err: err}
}

func Dependency(op string, err error) *Error {
	return &Error{Kind: KindDependency, Message: op + " failed", Err: err}
}

// KindOf extracts the Kind from err, or empty when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
