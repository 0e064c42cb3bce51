// Package errors provides the application's HTTP-facing error type: the
// small set of error codes the webhook endpoint and startup sequence
// actually return to a caller or log, each carrying an ErrorCode for
// structured responses.
package errors

import "fmt"

// ErrorCode represents application error codes
type ErrorCode string

// Error codes for the categories this service actually raises.
const (
	// ErrCodeGitWebhook: the inbound webhook payload failed signature
	// verification or could not be parsed.
	ErrCodeGitWebhook ErrorCode = "E2004"

	// ErrCodeDBConnection: the database could not be opened or connected to
	// at startup.
	ErrCodeDBConnection ErrorCode = "E5001"

	// ErrCodeDBMigration: GORM's AutoMigrate failed at startup.
	ErrCodeDBMigration ErrorCode = "E5003"

	// ErrCodeConfigInvalid: a loaded configuration value failed validation.
	ErrCodeConfigInvalid ErrorCode = "E6002"
)

// AppError represents an application-level error with code and context
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
