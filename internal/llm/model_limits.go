package llm

import (
	"strings"

	"github.com/testweaver-ai/testweaver/internal/logger"
)

// ModelFamily represents a family of models from a specific provider
type ModelFamily int

const (
	FamilyUnknown ModelFamily = iota
	// OpenAI families
	FamilyGPT5
	FamilyO3
	FamilyGPT4o
	FamilyGPT4
	FamilyGPT35
	// Anthropic families
	FamilyClaude4
	FamilyClaude35
	FamilyClaude3
	// Google families
	FamilyGemini2
	FamilyGemini15
	// Meta families
	FamilyLlama3
	// Mistral families
	FamilyMistral
	FamilyCodestral
	// Other families
	FamilyQwen
	FamilyDeepSeek
)

// ModelProfile describes the token ceilings for one model. Immutable; looked
// up by model identifier.
type ModelProfile struct {
	ModelID              string
	MaxContextTokens     int
	ReservedOutputTokens int
	SafetyMarginPct      float64
}

// defaultProfile is the conservative fallback for unrecognized models.
var defaultProfile = ModelProfile{
	ModelID:              "default",
	MaxContextTokens:     8192,
	ReservedOutputTokens: 1024,
	SafetyMarginPct:      0.15,
}

// AvailableTokens is the context budget left after reserving output space
func (p ModelProfile) AvailableTokens() int {
	return p.MaxContextTokens - p.ReservedOutputTokens
}

// EffectiveLimit is the usable budget after the safety margin
func (p ModelProfile) EffectiveLimit() int {
	return int(float64(p.AvailableTokens()) * (1 - p.SafetyMarginPct))
}

// GetProfile returns the profile for a model identifier, or the conservative
// default for unknown models (logged as a fallback condition, not fatal).
func GetProfile(modelID string) ModelProfile {
	family := DetectModelFamily(modelID)
	window := DetectContextWindow(modelID, family)
	if window == 0 {
		logger.Warn("unknown model %q, falling back to default profile", modelID)
		profile := defaultProfile
		profile.ModelID = modelID
		return profile
	}

	reserved := defaultProfile.ReservedOutputTokens
	if window >= 32768 {
		reserved = 4096
	}

	return ModelProfile{
		ModelID:              modelID,
		MaxContextTokens:     window,
		ReservedOutputTokens: reserved,
		SafetyMarginPct:      defaultProfile.SafetyMarginPct,
	}
}

// GetAvailableTokens returns max context minus reserved output for the model
func GetAvailableTokens(modelID string) int {
	return GetProfile(modelID).AvailableTokens()
}

// DetectModelFamily identifies the model family from a model identifier
func DetectModelFamily(modelID string) ModelFamily {
	id := normalizeModelID(modelID)

	switch {
	case strings.Contains(id, "gpt-5"), strings.Contains(id, "chatgpt-5"):
		return FamilyGPT5
	case strings.Contains(id, "o3"):
		return FamilyO3
	case strings.Contains(id, "gpt-4o"):
		return FamilyGPT4o
	case strings.Contains(id, "gpt-4"):
		return FamilyGPT4
	case strings.Contains(id, "gpt-3.5"), strings.Contains(id, "gpt-35"):
		return FamilyGPT35
	case strings.Contains(id, "claude-4"), strings.Contains(id, "claude-sonnet-4"), strings.Contains(id, "claude-opus-4"):
		return FamilyClaude4
	case strings.Contains(id, "claude-3-5"), strings.Contains(id, "claude-3.5"):
		return FamilyClaude35
	case strings.Contains(id, "claude"):
		return FamilyClaude3
	case strings.Contains(id, "gemini-2"), strings.Contains(id, "gemini2"):
		return FamilyGemini2
	case strings.Contains(id, "gemini"):
		return FamilyGemini15
	case strings.Contains(id, "llama"):
		return FamilyLlama3
	case strings.Contains(id, "codestral"):
		return FamilyCodestral
	case strings.Contains(id, "mistral"), strings.Contains(id, "mixtral"):
		return FamilyMistral
	case strings.Contains(id, "qwen"):
		return FamilyQwen
	case strings.Contains(id, "deepseek"):
		return FamilyDeepSeek
	default:
		return FamilyUnknown
	}
}

// ParseExplicitSize extracts explicit size indicators from a model ID
// (128k, 32768, etc.)
func ParseExplicitSize(modelID string) (int, bool) {
	id := normalizeModelID(modelID)

	sizes := []struct {
		pattern string
		value   int
	}{
		{"200k", 204800},
		{"128k", 131072},
		{"100k", 102400},
		{"64k", 65536},
		{"32k", 32768},
		{"16k", 16384},
		{"8k", 8192},
		{"4k", 4096},
	}
	for _, size := range sizes {
		if strings.Contains(id, size.pattern) {
			return size.value, true
		}
	}

	exactSizes := []struct {
		pattern string
		value   int
	}{
		{"131072", 131072},
		{"32768", 32768},
		{"16384", 16384},
		{"8192", 8192},
	}
	for _, size := range exactSizes {
		if strings.Contains(id, size.pattern) {
			return size.value, true
		}
	}

	return 0, false
}

// DetectContextWindow detects the context window size for a model. Returns 0
// when neither an explicit size indicator nor the family is recognized.
func DetectContextWindow(modelID string, family ModelFamily) int {
	if size, ok := ParseExplicitSize(modelID); ok {
		return size
	}

	switch family {
	case FamilyGPT5, FamilyGPT4o:
		return 128000
	case FamilyO3:
		return 200000
	case FamilyGPT4:
		return 8192
	case FamilyGPT35:
		return 4096
	case FamilyClaude4, FamilyClaude35, FamilyClaude3:
		return 200000
	case FamilyGemini2:
		return 1000000
	case FamilyGemini15:
		return 1000000
	case FamilyLlama3:
		return 131072
	case FamilyMistral, FamilyCodestral:
		return 32768
	case FamilyQwen, FamilyDeepSeek:
		return 65536
	default:
		return 0
	}
}

func normalizeModelID(modelID string) string {
	return strings.ToLower(strings.TrimSpace(modelID))
}
