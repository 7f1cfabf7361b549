package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies of a sentinel still match it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Summary error codes. These are stable and returned to callers as error_code.
const (
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeInvalidQuery      = "INVALID_QUERY"
	ErrCodeBotDetected       = "BOT_DETECTED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeProviderError     = "PROVIDER_ERROR"
	ErrCodeParseError        = "PARSE_ERROR"
	ErrCodeSearchUnavailable = "SEARCH_UNAVAILABLE"
)

// General error codes used by the admin surface.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Request gating errors
var (
	ErrNotConfigured   = NewDomainError(ErrCodeNotConfigured, "AI search summaries are not configured")
	ErrQueryTooShort   = NewDomainError(ErrCodeInvalidQuery, fmt.Sprintf("query must be at least %d characters", MinQueryLength))
	ErrQueryTooLong    = NewDomainError(ErrCodeInvalidQuery, fmt.Sprintf("query must be at most %d characters", MaxQueryLength))
	ErrBotDetected     = NewDomainError(ErrCodeBotDetected, "automated requests are not allowed")
	ErrIPRateLimited   = NewDomainError(ErrCodeRateLimited, "too many requests, please slow down")
	ErrProviderBudget  = NewDomainError(ErrCodeRateLimited, "AI summaries are temporarily unavailable, please try again shortly")
	ErrSearchFailed    = NewDomainError(ErrCodeSearchUnavailable, "search is temporarily unavailable")
	ErrRequestCanceled = NewDomainError(ErrCodeProviderError, "the request ended before the AI summary completed")
)

// Admin errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrAdminUnauthorized    = NewDomainError(ErrCodeUnauthorized, "invalid admin token")
)

// ErrorCode returns the stable code carried by err, or INTERNAL_ERROR when
// err is not a DomainError.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// ErrorMessage returns the user-facing message carried by err. Causes are
// never included because they may hold provider diagnostics.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "an unexpected error occurred"
}
