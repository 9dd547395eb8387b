package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components raise AppErrors with these codes instead
// of bare fmt.Errorf so the retry layer and the run report can classify
// failures without parsing message text.
const (
	// Configuration (fatal to the run)
	ErrCodeConfigSourceUnavailable ErrorCode = "config_source_unavailable"
	ErrCodeConfigMissingColumn     ErrorCode = "config_missing_column"

	// Row-level validation (row or calendar entry dropped, never fatal)
	ErrCodeValidationInvalidEmail      ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidCalendarID ErrorCode = "validation_invalid_calendar_id"

	// Upstream (calendar or email provider)
	ErrCodeUpstreamCalendar      ErrorCode = "upstream_calendar_error"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_error"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	// Terminal provider rejections
	ErrCodeEmailBlocked ErrorCode = "email_blocked"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Transient reports whether errors carrying this code are worth retrying.
// Codes not listed here defer to the message-pattern classification in the
// retry package.
func (c ErrorCode) Transient() bool {
	switch c {
	case ErrCodeUpstreamUnavailable, ErrCodeUpstreamRateLimited:
		return true
	default:
		return false
	}
}

// Terminal reports whether errors carrying this code must never be retried,
// regardless of what their message text looks like.
func (c ErrorCode) Terminal() bool {
	switch c {
	case ErrCodeEmailBlocked,
		ErrCodeConfigSourceUnavailable,
		ErrCodeConfigMissingColumn,
		ErrCodeValidationInvalidEmail,
		ErrCodeValidationInvalidCalendarID:
		return true
	default:
		return false
	}
}

// AppError is the standard application error type. Domain errors are
// expressed as AppError to enable consistent classification and error
// chain support.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
