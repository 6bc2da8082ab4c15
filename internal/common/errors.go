package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ValidationError wraps a locally recoverable input error. It never reaches
// the storage layer.
func ValidationError(message string, err error) *AppError {
	return NewAppError("VALIDATION", message, http.StatusUnprocessableEntity, err)
}

// NotFoundError marks a lookup miss that must be surfaced distinctly from a
// generic failure.
func NotFoundError(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

// EligibilityError carries the specific reason a coupon or quote was refused.
func EligibilityError(message string, err error) *AppError {
	return NewAppError("ELIGIBILITY", message, http.StatusConflict, err)
}
