package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

// streamState tracks one in-flight streaming response. It lives only for the
// duration of the read and is discarded when the stream ends, errors, or is
// cancelled.
type streamState struct {
	full       strings.Builder
	chunkCount int
}

// StreamConsumer reassembles an SSE-style incremental response into full text.
// Malformed frames are logged and skipped; exceeding MaxBufferBytes aborts the
// read with a response-too-large error instead of accumulating unbounded memory.
type StreamConsumer struct {
	// MaxBufferBytes caps the accumulated response size; 0 means the default
	MaxBufferBytes int
}

// sseDelta is the minimal shape of one OpenAI-style stream frame
type sseDelta struct {
	Choices []struct {
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Consume reads body incrementally, invoking onChunk for every content delta
// with the delta and the text accumulated so far. It returns the full text on
// the provider's end-of-stream marker ("[DONE]") or on EOF.
func (sc *StreamConsumer) Consume(ctx context.Context, body io.Reader, onChunk StreamCallback) (string, error) {
	maxBytes := sc.MaxBufferBytes
	if maxBytes <= 0 {
		maxBytes = consts.MaxStreamBufferBytes
	}

	state := &streamState{}

	scanner := bufio.NewScanner(body)
	buffer := make([]byte, 0, consts.BufferSize256KB)
	scanner.Buffer(buffer, consts.BufferSize1MB)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", WrapError(KindCancelled, err, "stream cancelled after %d chunks", state.chunkCount)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return state.full.String(), nil
		}

		var frame sseDelta
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// One corrupt delta must not lose all prior accumulated content
			logger.Warn("skipping malformed stream frame: %v", err)
			continue
		}

		for _, choice := range frame.Choices {
			if choice.Delta == nil || choice.Delta.Content == "" {
				continue
			}

			delta := choice.Delta.Content
			if state.full.Len()+len(delta) > maxBytes {
				return "", NewError(KindResponseTooLarge,
					"streaming response exceeded %d byte buffer ceiling", maxBytes)
			}

			state.full.WriteString(delta)
			state.chunkCount++

			if onChunk != nil {
				if err := onChunk(delta, state.full.String()); err != nil {
					return "", WrapError(KindCancelled, err, "stream callback aborted")
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", WrapError(KindTimeout, ctxErr, "stream timed out after %d chunks", state.chunkCount)
			}
			return "", WrapError(KindCancelled, ctxErr, "stream cancelled after %d chunks", state.chunkCount)
		}
		// A single frame larger than the line buffer is an oversized
		// response, not a connectivity failure; retrying would repeat it
		if errors.Is(err, bufio.ErrTooLong) {
			return "", WrapError(KindResponseTooLarge, err,
				"stream frame exceeded %d byte line buffer", consts.BufferSize1MB)
		}
		return "", WrapError(KindNetwork, err, "stream read failed after %d chunks", state.chunkCount)
	}

	// EOF without [DONE]: treat what we have as the final text
	return state.full.String(), nil
}
