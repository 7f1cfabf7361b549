// Package provider talks to upstream chat-completion APIs and turns their
// answers into SummaryResults.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// ChatRequest is a provider-neutral two-part prompt.
type ChatRequest struct {
	Model     string
	System    string
	User      string
	MaxTokens int
	JSONMode  bool
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	Content      string
	FinishReason string
	Refusal      string
}

// Refused reports whether the provider declined on content-policy grounds.
func (r *ChatResponse) Refused() bool {
	switch r.FinishReason {
	case "content_filter", "refusal":
		return true
	}
	return strings.TrimSpace(r.Refusal) != ""
}

// ChatClient is implemented by each upstream provider.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ListModels(ctx context.Context) ([]string, error)
	Name() string
}

// CallError is a classified provider failure.
type CallError struct {
	// StatusCode is the upstream HTTP status, 0 when no response arrived.
	StatusCode int
	Retryable  bool
	// Code is the domain error code surfaced to callers.
	Code    string
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// statusError classifies an HTTP error response.
func statusError(status int, err error) *CallError {
	ce := &CallError{StatusCode: status, Code: domain.ErrCodeProviderError, Err: err}
	switch {
	case status == 401 || status == 403:
		ce.Message = fmt.Sprintf("AI provider rejected the API credentials (HTTP %d)", status)
	case status == 404:
		ce.Message = "AI provider does not recognize the configured model (HTTP 404)"
	case status == 408:
		ce.Retryable = true
		ce.Message = "AI provider timed out (HTTP 408)"
	case status == 409 || status == 429:
		ce.Retryable = true
		ce.Message = fmt.Sprintf("AI provider is rate limiting requests (HTTP %d)", status)
	case status >= 500:
		ce.Retryable = true
		ce.Message = fmt.Sprintf("AI provider is temporarily unavailable (HTTP %d)", status)
	default:
		ce.Message = fmt.Sprintf("AI provider rejected the request (HTTP %d)", status)
	}
	return ce
}

// transportError classifies a failure where no HTTP response arrived.
func transportError(err error) *CallError {
	ce := &CallError{Retryable: true, Code: domain.ErrCodeProviderError, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		ce.Retryable = false
		ce.Message = "AI provider request was cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		ce.Message = "AI provider request timed out"
	default:
		ce.Message = "could not connect to the AI provider"
	}
	return ce
}

func refusalError(resp *ChatResponse) *CallError {
	return &CallError{
		Code:    domain.ErrCodeProviderError,
		Message: "AI provider declined to answer this query",
		Err:     fmt.Errorf("finish_reason=%q refusal=%q", resp.FinishReason, resp.Refusal),
	}
}

// parseError classifies a 2xx response whose payload could not be decoded.
// Empty or truncated output may succeed on another attempt; anything else
// would fail the same way again.
func parseError(resp *ChatResponse, err error) *CallError {
	retryable := strings.TrimSpace(resp.Content) == "" || resp.FinishReason == "length"
	return &CallError{
		Retryable: retryable,
		Code:      domain.ErrCodeParseError,
		Message:   "AI provider returned a response that could not be read",
		Err:       err,
	}
}

func asCallError(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return transportError(err)
}

// ToDomainError converts a provider failure into the error returned to
// callers. Diagnostics stay on the cause.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	ce := asCallError(err)
	return domain.NewDomainErrorWithCause(ce.Code, ce.Message, ce)
}

var jsonModeFamilies = []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"}

var reasoningFamilies = []string{"gpt-5", "o1", "o3", "o4"}

func hasFamilyPrefix(model string, families []string) bool {
	m := strings.ToLower(model)
	for _, f := range families {
		if strings.HasPrefix(m, f) {
			return true
		}
	}
	return false
}

// SupportsJSONMode reports whether model accepts response_format json_object.
func SupportsJSONMode(model string) bool {
	return hasFamilyPrefix(model, jsonModeFamilies)
}

// IsReasoningModel reports whether model takes max_completion_tokens and
// rejects a custom temperature.
func IsReasoningModel(model string) bool {
	return hasFamilyPrefix(model, reasoningFamilies)
}
