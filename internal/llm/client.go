package llm

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Messages     []*Message `json:"messages"`
	Temperature  float64    `json:"temperature"`
	MaxTokens    int        `json:"max_tokens,omitempty"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content      string `json:"content"`
	StopReason   string `json:"stop_reason"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// StreamCallback receives one content delta plus the text accumulated so far.
// Returning an error aborts the stream.
type StreamCallback func(delta, accumulated string) error

// Client is the provider port: messages in, text out, optionally incremental.
// Implementations must honor context cancellation on every network operation.
type Client interface {
	// CompleteWithRequest sends a completion request and returns the response
	CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// Complete is a simplified version for a single prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream sends a streaming completion request and returns the full
	// accumulated text once the provider signals end-of-stream
	Stream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (string, error)
	// GetModelName returns the model name
	GetModelName() string
}
