package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorCode classifies engine failures.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "ValidationError"
	CodeSlotUnavailable   ErrorCode = "SlotUnavailable"
	CodeInvalidTransition ErrorCode = "InvalidTransition"
	CodeForbidden         ErrorCode = "Forbidden"
	CodeNotFound          ErrorCode = "NotFound"
	CodeStoreUnavailable  ErrorCode = "StoreUnavailable"
)

// AppError is the typed error every engine operation returns.
// Cause is kept for logs only and never rendered to clients.
type AppError struct {
	Code      ErrorCode
	Message   string
	Field     string
	BookingID string
	Retryable bool
	Cause     error
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code, so the sentinels below work
// with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation        = &AppError{Code: CodeValidation}
	ErrSlotUnavailable   = &AppError{Code: CodeSlotUnavailable}
	ErrInvalidTransition = &AppError{Code: CodeInvalidTransition}
	ErrForbidden         = &AppError{Code: CodeForbidden}
	ErrNotFound          = &AppError{Code: CodeNotFound}
	ErrStoreUnavailable  = &AppError{Code: CodeStoreUnavailable}
)

func NewValidationError(field, msg string) error {
	return &AppError{Code: CodeValidation, Field: field, Message: msg}
}

func NewSlotUnavailableError(conflictingBookingID string) error {
	return &AppError{
		Code:      CodeSlotUnavailable,
		Message:   "the requested slot is already taken",
		BookingID: conflictingBookingID,
	}
}

func NewInvalidTransitionError(from, to string) error {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move booking from %q to %q", from, to),
	}
}

func NewForbiddenError(msg string) error {
	return &AppError{Code: CodeForbidden, Message: msg}
}

func NewNotFoundError(what, id string) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

// NewStoreUnavailableError wraps an infrastructure failure as retryable.
func NewStoreUnavailableError(op string, cause error) error {
	return &AppError{
		Code:      CodeStoreUnavailable,
		Message:   "booking store temporarily unavailable, retry later",
		Field:     op,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf returns the classification of err, or "" when it is not an AppError.
func CodeOf(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message   string    `json:"message"`
	Code      ErrorCode `json:"code,omitempty"`
	Field     string    `json:"field,omitempty"`
	BookingID string    `json:"bookingId,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Details   string    `json:"details,omitempty"`
}

var statusByCode = map[ErrorCode]int{
	CodeValidation:        http.StatusBadRequest,
	CodeSlotUnavailable:   http.StatusConflict,
	CodeInvalidTransition: http.StatusConflict,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeStoreUnavailable:  http.StatusServiceUnavailable,
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// RespondError renders an engine error. Store failures are reported
// generically with a retry hint.
func RespondError(c *gin.Context, err error) {
	var ae *AppError
	if !errors.As(err, &ae) {
		GetLogger().Error("unclassified error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal Server Error"})
		return
	}

	status, ok := statusByCode[ae.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	resp := ErrorResponse{
		Message:   ae.Message,
		Code:      ae.Code,
		Field:     ae.Field,
		BookingID: ae.BookingID,
		Retryable: ae.Retryable,
	}
	if ae.Code == CodeStoreUnavailable {
		GetLogger().Error("store unavailable", zap.String("op", ae.Field), zap.Error(ae.Cause))
		resp.Field = ""
		c.Header("Retry-After", "2")
	} else {
		GetLogger().Debug("request rejected", zap.String("code", string(ae.Code)), zap.String("message", ae.Message))
	}
	c.JSON(status, resp)
}
