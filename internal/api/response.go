package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SummaryResponse is the body of every /summary response. Error is empty on
// success.
type SummaryResponse struct {
	AnswerHTML string          `json:"answer_html"`
	Error      string          `json:"error"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Sources    []domain.Source `json:"sources,omitempty"`
	CacheHit   *bool           `json:"cache_hit,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes for the admin
// and housekeeping endpoints.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeBotDetected:
		return http.StatusForbidden
	case domain.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrCodeNotConfigured, domain.ErrCodeSearchUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeProviderError, domain.ErrCodeParseError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SummaryStatus maps a summary error to its HTTP status. Only bot and per-IP
// rejections change the status; every other failure is reported in the
// body of a 200 so the search page can render it inline.
func SummaryStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrBotDetected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrIPRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// SummaryError writes the summary error body. The message is the
// user-facing one; causes stay in the server log.
func SummaryError(w http.ResponseWriter, err error) {
	JSON(w, SummaryStatus(err), SummaryResponse{
		Error:     domain.ErrorMessage(err),
		ErrorCode: domain.ErrorCode(err),
	})
}

// HandleError writes an appropriate error response based on the error type
func HandleError(w http.ResponseWriter, err error) {
	Error(w, DomainErrorToHTTP(err), domain.ErrorMessage(err))
}
