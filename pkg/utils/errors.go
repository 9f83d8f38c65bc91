package pkg

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Predefined errors. Handlers and services return these directly so callers
// can branch on the kind without string matching.
var (
	ErrUnauthenticated = &AppError{
		Code:    http.StatusUnauthorized,
		Kind:    "Unauthenticated",
		Message: "Authentication required",
	}

	ErrForbidden = &AppError{
		Code:    http.StatusForbidden,
		Kind:    "Forbidden",
		Message: "You do not own this livestream",
	}

	ErrLivestreamNotFound = &AppError{
		Code:    http.StatusNotFound,
		Kind:    "NotFound",
		Message: "Livestream not found",
	}

	ErrAlreadyEnded = &AppError{
		Code:    http.StatusConflict,
		Kind:    "AlreadyEnded",
		Message: "Livestream has already ended",
	}

	ErrNotScheduled = &AppError{
		Code:    http.StatusConflict,
		Kind:    "NotScheduled",
		Message: "Livestream is not in scheduled status",
	}

	ErrNotLive = &AppError{
		Code:    http.StatusConflict,
		Kind:    "NotLive",
		Message: "Livestream is not live",
	}

	ErrInvalidSchedule = &AppError{
		Code:    http.StatusBadRequest,
		Kind:    "InvalidSchedule",
		Message: "Scheduled start time must be a valid instant in the future",
	}

	ErrEntityResolutionFailed = &AppError{
		Code:    http.StatusUnprocessableEntity,
		Kind:    "EntityResolutionFailed",
		Message: "Could not resolve a broadcaster entity for this account",
	}

	ErrSchedulerAlreadyRunning = &AppError{
		Code:    http.StatusConflict,
		Kind:    "AlreadyRunning",
		Message: "A scheduler cycle is already in progress",
	}

	ErrValidationFailed = &AppError{
		Code:    http.StatusBadRequest,
		Kind:    "ValidationError",
		Message: "Validation failed",
	}

	ErrInternalServer = &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    "DependencyFailure",
		Message: "Internal server error",
	}
)

func NewAppError(code int, kind, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Kind:    "ValidationError",
		Message: message,
	}
}

func NewDependencyError(message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    "DependencyFailure",
		Message: message,
	}
}

// CustomHTTPErrorHandler handles errors across the application
func CustomHTTPErrorHandler(err error, c echo.Context) {
	var appErr *AppError

	// Check if it's our custom AppError
	if ae, ok := err.(*AppError); ok {
		appErr = ae
	} else if he, ok := err.(*echo.HTTPError); ok {
		// Handle echo HTTP errors
		appErr = &AppError{
			Code:    he.Code,
			Kind:    "HTTPError",
			Message: fmt.Sprintf("%s", he.Message),
		}
	} else {
		// Handle generic errors
		appErr = &AppError{
			Code:    http.StatusInternalServerError,
			Kind:    "DependencyFailure",
			Message: "Internal server error",
			Details: err.Error(),
		}
	}

	// Log the error
	WithFields(map[string]interface{}{
		"error":  err.Error(),
		"code":   appErr.Code,
		"kind":   appErr.Kind,
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	}).Error("HTTP Error")

	// Don't expose internal error details in production
	if appErr.Code == http.StatusInternalServerError {
		appErr.Details = ""
	}

	// Send error response
	if !c.Response().Committed {
		c.JSON(appErr.Code, appErr)
	}
}
