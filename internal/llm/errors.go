package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a pipeline failure. The generator's retry policy keys off
// this classification, not off error strings.
type Kind int

const (
	// KindUnknown is an unclassified failure; treated as non-retryable
	KindUnknown Kind = iota
	// KindInvalidInput marks malformed requests (e.g. empty code); never retried
	KindInvalidInput
	// KindTokenLimit means content cannot fit the model context, even truncated
	KindTokenLimit
	// KindNetwork is a transient connectivity failure; retried with backoff
	KindNetwork
	// KindProvider is a non-2xx provider response
	KindProvider
	// KindResponseTooLarge means the streaming buffer ceiling was exceeded
	KindResponseTooLarge
	// KindTimeout means the call exceeded its deadline; retried once
	KindTimeout
	// KindCancelled is an explicit cancellation; surfaced immediately
	KindCancelled
	// KindEmptyResponse means the provider returned success without content
	KindEmptyResponse
)

// String returns the wire-friendly name of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindTokenLimit:
		return "token_limit_exceeded"
	case KindNetwork:
		return "network_error"
	case KindProvider:
		return "provider_error"
	case KindResponseTooLarge:
		return "response_too_large"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

// Error carries a failure kind alongside a human-readable message. StatusCode
// is set for provider errors so auth failures and rate limits can be told apart.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with a kind and message
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf classifies an arbitrary error. Context cancellation and deadline
// errors map to their pipeline kinds even when wrapped by lower layers.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsRetryable reports whether the generator may retry after this error.
// Provider errors are retryable only for rate limiting and server-side faults;
// auth failures fail fast.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case KindNetwork, KindTimeout, KindEmptyResponse:
			return true
		case KindProvider:
			return llmErr.StatusCode == http.StatusTooManyRequests || llmErr.StatusCode >= 500
		default:
			return false
		}
	}
	return false
}

// tokenLimitMarkers are provider message fragments that identify a
// token-limit-shaped rejection regardless of vendor.
var tokenLimitMarkers = []string{
	"context length",
	"context window",
	"maximum context",
	"too many tokens",
	"prompt is too long",
	"token limit",
}

// classifyProviderError converts a non-2xx provider response into an Error,
// recognizing token-limit rejections by message content.
func classifyProviderError(statusCode int, body string) *Error {
	lower := strings.ToLower(body)
	for _, marker := range tokenLimitMarkers {
		if strings.Contains(lower, marker) {
			return &Error{
				Kind:       KindTokenLimit,
				Message:    fmt.Sprintf("provider rejected request as over token limit: status %d", statusCode),
				StatusCode: statusCode,
			}
		}
	}

	return &Error{
		Kind:       KindProvider,
		Message:    fmt.Sprintf("provider returned status %d: %s", statusCode, strings.TrimSpace(body)),
		StatusCode: statusCode,
	}
}
