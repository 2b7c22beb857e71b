package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrNotAuthorized    ErrorType = "NOT_AUTHORIZED"
	ErrCapExceeded      ErrorType = "CAP_EXCEEDED"
	ErrNothingToExecute ErrorType = "NOTHING_TO_EXECUTE"
	ErrEnginePaused     ErrorType = "ENGINE_PAUSED"
	ErrInvalidConfig    ErrorType = "INVALID_CONFIGURATION"
	ErrInvalidAmount    ErrorType = "INVALID_AMOUNT"
	ErrUnauthorized     ErrorType = "UNAUTHORIZED"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewNotAuthorized(msg string) *AppError {
	return New(ErrNotAuthorized, msg, nil)
}

func NewCapExceeded(msg string) *AppError {
	return New(ErrCapExceeded, msg, nil)
}

func NewInvalidAmount(msg string) *AppError {
	return New(ErrInvalidAmount, msg, nil)
}

func NewInvalidConfig(msg string) *AppError {
	return New(ErrInvalidConfig, msg, nil)
}

func NewUnauthorized(msg string) *AppError {
	return New(ErrUnauthorized, msg, nil)
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

// TypeOf returns the error type of err, or ErrInternal for unknown errors.
func TypeOf(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrInternal
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidAmount, ErrInvalidConfig:
		return http.StatusBadRequest
	case ErrNotAuthorized, ErrCapExceeded, ErrNothingToExecute:
		return http.StatusUnprocessableEntity
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrEnginePaused:
		return http.StatusServiceUnavailable
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrNotAuthorized:
		return "User has revoked or never configured this asset. Stop retrying."
	case ErrCapExceeded, ErrNothingToExecute:
		return "Period allowance exhausted. Retry after the window resets."
	case ErrEnginePaused:
		return "Engine is paused by admin. Retry later."
	case ErrUnauthorized:
		return "Check admin credentials."
	case ErrInvalidAmount:
		return "Check amount formatting and asset decimals."
	default:
		return ""
	}
}
