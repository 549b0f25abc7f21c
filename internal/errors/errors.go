// Package errors defines the typed domain errors shared by the claim, investigation
// and refund services. Every error a synchronous caller can see carries a Kind so
// transports can map it without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a DomainError.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindTransient      Kind = "transient"
	KindInfrastructure Kind = "infrastructure"
	KindInternal       Kind = "internal"
)

// DomainError is the error type returned across service boundaries.
type DomainError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches on Code so a sentinel still matches after WithMessage or Wrap.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error carrying a more specific message.
func (e *DomainError) WithMessage(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap returns a copy of the error with cause attached.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func New(kind Kind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *DomainError {
	return New(KindValidation, code, message)
}

func NotFound(code, message string) *DomainError {
	return New(KindNotFound, code, message)
}

func Forbidden(code, message string) *DomainError {
	return New(KindForbidden, code, message)
}

func Conflict(code, message string) *DomainError {
	return New(KindConflict, code, message)
}

func Transient(code, message string, err error) *DomainError {
	return &DomainError{Kind: KindTransient, Code: code, Message: message, Err: err}
}

func Infrastructure(code, message string, err error) *DomainError {
	return &DomainError{Kind: KindInfrastructure, Code: code, Message: message, Err: err}
}

// KindOf reports the Kind of the first DomainError in err's chain.
// Errors that carry no DomainError are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Retryable reports whether a background job should try the operation again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindInfrastructure:
		return true
	}
	return false
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusBadGateway
	case KindInfrastructure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Code returns the code of the first DomainError in err's chain.
func Code(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
