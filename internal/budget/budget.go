// Package budget decides whether a generation request fits in a single model
// call and performs staged truncation when it does not. History is sacrificed
// first, then retrieval context, and code only as a last resort, since
// dropping code changes the semantic task.
package budget

import (
	"strings"

	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

// TokenBudget is the sizing decision for one generation request. Derived:
// recompute whenever any constituent changes.
type TokenBudget struct {
	CodeTokens            int
	RAGTokens             int
	HistoryTokens         int
	PromptOverheadTokens  int
	ResponseReserveTokens int
	TotalTokens           int
	AvailableTokens       int
	EffectiveLimit        int
	NeedsChunking         bool
	UtilizationPercent    float64
}

// Budgeter computes token budgets and performs staged truncation
type Budgeter struct {
	est *llm.Estimator
}

// New creates a Budgeter using the given estimator
func New(est *llm.Estimator) *Budgeter {
	return &Budgeter{est: est}
}

// ComputeBudget derives the budget for the given token counts against the
// model's profile.
func (b *Budgeter) ComputeBudget(codeTokens, ragTokens, historyTokens int, modelID string) TokenBudget {
	profile := llm.GetProfile(modelID)

	total := codeTokens + ragTokens + historyTokens + consts.PromptOverheadTokens
	available := profile.AvailableTokens()
	effective := profile.EffectiveLimit()

	utilization := 0.0
	if effective > 0 {
		utilization = float64(total) / float64(effective) * 100
	}

	return TokenBudget{
		CodeTokens:            codeTokens,
		RAGTokens:             ragTokens,
		HistoryTokens:         historyTokens,
		PromptOverheadTokens:  consts.PromptOverheadTokens,
		ResponseReserveTokens: profile.ReservedOutputTokens,
		TotalTokens:           total,
		AvailableTokens:       available,
		EffectiveLimit:        effective,
		NeedsChunking:         total > effective,
		UtilizationPercent:    utilization,
	}
}

// Content is the truncatable material of one request
type Content struct {
	Code       string
	RAGContext string
	History    []*llm.Message
}

// TruncateToFit reduces content in strict priority order until the budget
// fits: (1) history to the most recent messages, then none; (2) RAG context
// to a fixed token ceiling, then none; (3) code itself, cut at line
// boundaries, only as a last resort. Truncation stops as soon as the result
// fits. If even a truncated code segment alone does not fit, a token-limit
// error is returned instead of forcing the request through.
func (b *Budgeter) TruncateToFit(modelID string, content Content) (Content, TokenBudget, error) {
	budget := b.computeFor(modelID, content)
	if !budget.NeedsChunking {
		return content, budget, nil
	}

	// Stage 1a: keep only the most recent conversation messages
	if len(content.History) > consts.HistoryKeepRecent {
		logger.Debug("budget: trimming history from %d to %d messages", len(content.History), consts.HistoryKeepRecent)
		content.History = content.History[len(content.History)-consts.HistoryKeepRecent:]
		budget = b.computeFor(modelID, content)
		if !budget.NeedsChunking {
			return content, budget, nil
		}
	}

	// Stage 1b: drop history entirely
	if len(content.History) > 0 {
		logger.Debug("budget: dropping conversation history")
		content.History = nil
		budget = b.computeFor(modelID, content)
		if !budget.NeedsChunking {
			return content, budget, nil
		}
	}

	// Stage 2a: truncate RAG context to its ceiling
	if content.RAGContext != "" && b.est.EstimateTokens(content.RAGContext) > consts.RAGTruncateTokenCeiling {
		logger.Debug("budget: truncating RAG context to %d tokens", consts.RAGTruncateTokenCeiling)
		content.RAGContext = b.TruncateToTokens(content.RAGContext, consts.RAGTruncateTokenCeiling, false)
		budget = b.computeFor(modelID, content)
		if !budget.NeedsChunking {
			return content, budget, nil
		}
	}

	// Stage 2b: drop RAG context entirely
	if content.RAGContext != "" {
		logger.Debug("budget: dropping RAG context")
		content.RAGContext = ""
		budget = b.computeFor(modelID, content)
		if !budget.NeedsChunking {
			return content, budget, nil
		}
	}

	// Stage 3: truncate the code itself
	codeCeiling := budget.EffectiveLimit - consts.PromptOverheadTokens
	if codeCeiling > 0 && b.est.EstimateTokens(content.Code) > codeCeiling {
		logger.Warn("budget: truncating code to %d tokens, generated tests will cover a partial artifact", codeCeiling)
		content.Code = b.TruncateToTokens(content.Code, codeCeiling, true)
		budget = b.computeFor(modelID, content)
	}

	if budget.NeedsChunking {
		return content, budget, llm.NewError(llm.KindTokenLimit,
			"content does not fit model %s even after full truncation (%d tokens over a %d limit); select a smaller section",
			modelID, budget.TotalTokens, budget.EffectiveLimit)
	}

	return content, budget, nil
}

// TruncateToTokens cuts text to approximately maxTokens, never mid-rune.
// When preferLines is set the cut lands on the last full line inside the
// limit, which keeps truncated code syntactically plausible.
func (b *Budgeter) TruncateToTokens(text string, maxTokens int, preferLines bool) string {
	if maxTokens <= 0 {
		return ""
	}
	if b.est.EstimateTokens(text) <= maxTokens {
		return text
	}

	// Binary search over rune prefixes for the longest prefix under the limit
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.est.EstimateTokens(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	cut := string(runes[:lo])
	if preferLines {
		if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
			cut = cut[:idx+1]
		}
	}
	return cut
}

func (b *Budgeter) computeFor(modelID string, content Content) TokenBudget {
	codeTokens := b.est.EstimateTokens(content.Code)
	ragTokens := b.est.EstimateTokens(content.RAGContext)
	historyTokens := b.est.CountMessagesTokens(content.History)
	return b.ComputeBudget(codeTokens, ragTokens, historyTokens, modelID)
}
