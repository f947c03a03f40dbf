package llm

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/testweaver-ai/testweaver/internal/logger"
)

const (
	systemMessageOverhead = 2
	perMessageOverhead    = 4
)

// Estimator approximates token counts for a given model. When tiktoken knows
// the model it uses the exact encoding; otherwise it falls back to cl100k_base
// and finally to a runes/4 heuristic rounded up, so estimates never come in
// under the real count on fallback.
type Estimator struct {
	modelID string
	encoder *tiktoken.Tiktoken
	approx  bool
}

// NewEstimator creates an Estimator for the given model
func NewEstimator(modelID string) *Estimator {
	encoder, approx := encodingForModel(modelID)
	if approx {
		logger.Debug("no exact encoding for model %q, using approximate token counts", modelID)
	}
	return &Estimator{modelID: modelID, encoder: encoder, approx: approx}
}

// EstimateTokens returns the estimated token count of text. Pure function of
// input: stable across calls and monotonic in input length.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	if e.encoder != nil {
		return len(e.encoder.Encode(text, nil, nil))
	}

	runes := utf8.RuneCountInString(text)
	// 1 token per 4 characters, rounded up
	return (runes + 3) / 4
}

// CountMessagesTokens sums the per-message estimates plus a fixed per-message
// overhead for role framing, matching provider accounting closely enough that
// budgeting errs on the safe side.
func (e *Estimator) CountMessagesTokens(messages []*Message) int {
	total := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		total += e.EstimateTokens(msg.Content) + perMessageOverhead
		if msg.Role == "system" {
			total += systemMessageOverhead
		}
	}
	return total
}

// NewHeuristicEstimator creates an Estimator that always uses the runes/4
// heuristic, never tiktoken. Deterministic regardless of which encoding files
// are available, which makes it the estimator of choice for tests.
func NewHeuristicEstimator(modelID string) *Estimator {
	return &Estimator{modelID: modelID, approx: true}
}

// Approximate reports whether the estimator fell back to heuristic counting
func (e *Estimator) Approximate() bool {
	return e.approx
}

// ModelID returns the model this estimator was built for
func (e *Estimator) ModelID() string {
	return e.modelID
}

func encodingForModel(modelID string) (*tiktoken.Tiktoken, bool) {
	encoder, err := tiktoken.EncodingForModel(modelID)
	if err == nil {
		return encoder, false
	}

	fallback, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, true
	}

	return fallback, true
}
