package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/consts"
)

// OpenAICompatibleClient implements the Client interface against any server
// speaking the OpenAI chat-completions wire format (OpenAI itself, OpenRouter,
// LocalAI, LM Studio, Ollama's compat endpoint, ...). The pipeline stays
// provider-agnostic by only ever talking through this one port.
type OpenAICompatibleClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	consumer   *StreamConsumer
}

// NewOpenAICompatibleClient constructs a client for an OpenAI-compatible API.
// baseURL must point to the API root (e.g. https://api.openai.com/v1). If
// apiKey is empty, requests are sent without Authorization headers (useful for
// unsecured local servers). Call deadlines come from the caller's context, so
// the underlying http.Client carries no timeout of its own.
func NewOpenAICompatibleClient(apiKey, baseURL, modelName string) (*OpenAICompatibleClient, error) {
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, NewError(KindInvalidInput, "model name is required")
	}

	trimmedBase := strings.TrimSpace(baseURL)
	if trimmedBase == "" {
		return nil, NewError(KindInvalidInput, "base URL is required")
	}

	return &OpenAICompatibleClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(trimmedBase, "/"),
		httpClient: &http.Client{},
		consumer:   &StreamConsumer{MaxBufferBytes: consts.MaxStreamBufferBytes},
	}, nil
}

func (c *OpenAICompatibleClient) GetModelName() string {
	return c.model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{
			{Role: "user", Content: prompt},
		},
		Temperature: consts.DefaultTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *OpenAICompatibleClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, NewError(KindInvalidInput, "completion request cannot be nil")
	}

	httpReq, err := c.newChatRequest(ctx, c.buildChatPayload(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize64KB))
		return nil, classifyProviderError(resp.StatusCode, string(body))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, WrapError(KindNetwork, err, "failed to decode completion response")
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil ||
		strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, NewError(KindEmptyResponse, "provider returned no usable content")
	}

	first := chatResp.Choices[0]
	stopReason := first.FinishReason
	if strings.TrimSpace(stopReason) == "" {
		stopReason = "stop"
	}

	return &CompletionResponse{
		Content:      first.Message.Content,
		StopReason:   stopReason,
		PromptTokens: chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// Stream sends a streaming completion request, forwarding deltas to callback
// and returning the full accumulated text.
func (c *OpenAICompatibleClient) Stream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (string, error) {
	if req == nil {
		return "", NewError(KindInvalidInput, "completion request cannot be nil")
	}

	httpReq, err := c.newChatRequest(ctx, c.buildChatPayload(req, true))
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize64KB))
		return "", classifyProviderError(resp.StatusCode, string(body))
	}

	full, err := c.consumer.Consume(ctx, resp.Body, callback)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(full) == "" {
		return "", NewError(KindEmptyResponse, "provider stream ended with no content")
	}
	return full, nil
}

// openAIChatRequest is the chat-completions request payload
type openAIChatRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      *openAIMessage `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompatibleClient) buildChatPayload(req *CompletionRequest, stream bool) *openAIChatRequest {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		messages = append(messages, openAIMessage{Role: msg.Role, Content: msg.Content})
	}

	payload := &openAIChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}
	return payload
}

func (c *OpenAICompatibleClient) newChatRequest(ctx context.Context, payload *openAIChatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// classifyTransportError maps a failed http.Client.Do into the pipeline's
// error taxonomy: cancellation and deadline first, everything else is network.
func classifyTransportError(ctx context.Context, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return WrapError(KindTimeout, err, "request deadline exceeded")
		}
		return WrapError(KindCancelled, err, "request cancelled")
	}
	return WrapError(KindNetwork, err, "request failed")
}
