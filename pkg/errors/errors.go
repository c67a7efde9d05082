package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNetwork           = "NETWORK_ERROR"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeRejected          = "REJECTED"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodeSelectionRequired = "SELECTION_REQUIRED"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeInternal          = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Network reports an unreachable backend or a request that timed out.
// Pollers retry on the next cycle; user actions surface a transient alert.
func Network(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// SessionExpired means renewal failed and the credential has been cleared.
func SessionExpired(err error) *AppError {
	return &AppError{
		Code:    CodeSessionExpired,
		Message: "Session expired, please log in again",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Validation carries a server-side payload rejection verbatim.
func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Rejected carries any other non-2xx answer from the backend with its message.
func Rejected(message string, err error) *AppError {
	return &AppError{
		Code:    CodeRejected,
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func EmptyMessage() *AppError {
	return &AppError{
		Code:    CodeEmptyMessage,
		Message: "Message text cannot be empty",
		Status:  http.StatusBadRequest,
	}
}

func SelectionRequired() *AppError {
	return &AppError{
		Code:    CodeSelectionRequired,
		Message: "Select a conversation before sending",
		Status:  http.StatusConflict,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}
