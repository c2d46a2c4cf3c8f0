package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates a request failed field validation
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")

	// ErrNotConfigured indicates a required setting or credential is missing
	ErrNotConfigured = errors.New("not configured")

	// ErrAuthFailed indicates a remote service rejected our credentials
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRecipientRejected indicates the mail transport refused the recipient
	ErrRecipientRejected = errors.New("recipient rejected")

	// ErrTransport indicates a network or protocol failure talking to a remote service
	ErrTransport = errors.New("transport failure")

	// ErrTemplate indicates a template could not be located or executed
	ErrTemplate = errors.New("template rendering failed")

	// ErrFetchFailed indicates the mailbox could not be read
	ErrFetchFailed = errors.New("mailbox fetch failed")

	// ErrSendFailed indicates the report could not be delivered
	ErrSendFailed = errors.New("report delivery failed")

	// ErrRunInProgress indicates a report run is already executing
	ErrRunInProgress = errors.New("report run already in progress")
)

// Error codes for API responses
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeRecipientRejected = "RECIPIENT_REJECTED"
	CodeTransportFailed   = "TRANSPORT_FAILED"
	CodeTemplateFailed    = "TEMPLATE_FAILED"
	CodeFetchFailed       = "FETCH_FAILED"
	CodeSendFailed        = "SEND_FAILED"
	CodeRunInProgress     = "RUN_IN_PROGRESS"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotConfigured checks if the error stems from missing configuration
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsRunInProgress checks if the error is a single-flight rejection
func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}

// GetErrorCode returns the appropriate error code for an error.
// An explicit AppError code wins over sentinel matching.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case IsNotConfigured(err):
		return CodeNotConfigured
	case errors.Is(err, ErrAuthFailed):
		return CodeAuthFailed
	case errors.Is(err, ErrRecipientRejected):
		return CodeRecipientRejected
	case errors.Is(err, ErrTransport):
		return CodeTransportFailed
	case errors.Is(err, ErrTemplate):
		return CodeTemplateFailed
	case errors.Is(err, ErrFetchFailed):
		return CodeFetchFailed
	case errors.Is(err, ErrSendFailed):
		return CodeSendFailed
	case IsRunInProgress(err):
		return CodeRunInProgress
	default:
		return CodeInternalError
	}
}
