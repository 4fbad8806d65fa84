package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAuthRequired        ErrorType = "AUTH_REQUIRED"
	ErrAccessDenied        ErrorType = "ACCESS_DENIED"
	ErrTableUnavailable    ErrorType = "TABLE_UNAVAILABLE"
	ErrValidation          ErrorType = "VALIDATION_FAILED"
	ErrNotFound            ErrorType = "NOT_FOUND"
	ErrConstraintViolation ErrorType = "CONSTRAINT_VIOLATION"
	ErrStorageFailure      ErrorType = "STORAGE_FAILURE"
	ErrRateLimited         ErrorType = "RATE_LIMITED"
	ErrReadOnly            ErrorType = "READ_ONLY"
	ErrInvalidRequest      ErrorType = "INVALID_REQUEST"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application. Message is safe
// to return to a caller; Cause keeps the original error for logs only.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Field      string    `json:"field,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

// NewValidation carries the offending field name back to the caller.
func NewValidation(field, msg string) *AppError {
	e := New(ErrValidation, msg, nil)
	e.Field = field
	return e
}

func NewAuthRequired(msg string) *AppError {
	return New(ErrAuthRequired, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrAuthRequired:
		return http.StatusUnauthorized
	case ErrAccessDenied, ErrReadOnly:
		return http.StatusForbidden
	case ErrTableUnavailable, ErrNotFound:
		return http.StatusNotFound
	case ErrValidation, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrConstraintViolation:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
