package errors

import (
	stderrors "errors"
	"fmt"
)

// ApplicationError represents a domain-specific error
type ApplicationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// Error constructors
func NewValidationError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  400,
	}
}

func NewNotFoundError(resource string) *ApplicationError {
	return &ApplicationError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  404,
	}
}

func NewConflictError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "CONFLICT",
		Message: message,
		Status:  409,
	}
}

func NewInternalError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  500,
	}
}

// NewNetworkError marks a transport-level failure talking to the core
// platform API. Previously loaded data stays usable; callers surface a
// per-source banner and offer a retry.
func NewNetworkError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "NETWORK_FAILURE",
		Message: message,
		Status:  502,
	}
}

// NewAuthError marks a 401/403 from the core platform API. Kept distinct
// from SERVER_REJECTION so callers can force re-authentication.
func NewAuthError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "AUTH_FAILURE",
		Message: message,
		Status:  401,
	}
}

// NewServerRejectionError carries the backend's message verbatim for a
// non-auth 4xx/5xx response. No automatic retry.
func NewServerRejectionError(message string, status int) *ApplicationError {
	if status < 400 {
		status = 500
	}
	return &ApplicationError{
		Code:    "SERVER_REJECTION",
		Message: message,
		Status:  status,
	}
}

func NewUnauthorizedError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  401,
	}
}

func NewForbiddenError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  403,
	}
}

func NewRequestTimeoutError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "REQUEST_TIMEOUT",
		Message: message,
		Status:  408,
	}
}

func NewTooManyRequestsError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  429,
	}
}

func NewServiceUnavailableError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  503,
	}
}

// IsAuthFailure reports whether err is an auth failure from the platform API.
func IsAuthFailure(err error) bool {
	return hasCode(err, "AUTH_FAILURE")
}

// IsNetworkFailure reports whether err is a transport-level failure.
func IsNetworkFailure(err error) bool {
	return hasCode(err, "NETWORK_FAILURE")
}

// IsValidationFailure reports whether err was rejected before any network call.
func IsValidationFailure(err error) bool {
	return hasCode(err, "VALIDATION_ERROR")
}

func hasCode(err error, code string) bool {
	var appErr *ApplicationError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
