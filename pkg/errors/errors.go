package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Session sentinel errors returned when an operation is attempted in a
// session phase that does not allow it.
var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrProfileIncomplete      = errors.New("profile incomplete")
	ErrProfileAlreadyComplete = errors.New("profile already complete")
	ErrSessionClosed          = errors.New("session closed")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// NotAuthenticated creates a 401 error for operations that need a signed-in user.
func NotAuthenticated() *AppError {
	return &AppError{
		Code:    "NOT_AUTHENTICATED",
		Message: "you need to sign in first",
		Status:  http.StatusUnauthorized,
		Err:     ErrNotAuthenticated,
	}
}

// ProfileIncomplete creates a 409 error for operations that need a finished onboarding.
func ProfileIncomplete() *AppError {
	return &AppError{
		Code:    "PROFILE_INCOMPLETE",
		Message: "complete your church profile first",
		Status:  http.StatusConflict,
		Err:     ErrProfileIncomplete,
	}
}

// ProfileAlreadyComplete creates a 409 error for a repeated onboarding attempt.
func ProfileAlreadyComplete() *AppError {
	return &AppError{
		Code:    "PROFILE_ALREADY_COMPLETE",
		Message: "profile is already complete",
		Status:  http.StatusConflict,
		Err:     ErrProfileAlreadyComplete,
	}
}

// CredentialsUnavailable creates a 503 error for a sign-in whose token could not be stored.
func CredentialsUnavailable() *AppError {
	return &AppError{
		Code:    "CREDENTIALS_UNAVAILABLE",
		Message: "your sign-in could not be saved, please try again",
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrProfileIncomplete), errors.Is(err, ErrProfileAlreadyComplete):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail), errors.Is(err, ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
