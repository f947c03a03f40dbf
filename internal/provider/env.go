// Package provider resolves provider credentials and endpoints for the
// generation host. Keys come from explicit configuration first and known
// environment variables second.
package provider

import (
	"os"
	"strings"
)

// providerEnvVars maps canonical provider names to the environment variables
// that can supply their API keys. Multiple variables allow backwards-compatible
// aliases (e.g., GEMINI_API_KEY and GOOGLE_API_KEY).
var providerEnvVars = map[string][]string{
	"openai":            {"OPENAI_API_KEY"},
	"anthropic":         {"ANTHROPIC_API_KEY"},
	"google":            {"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY"},
	"openrouter":        {"OPENROUTER_API_KEY"},
	"mistral":           {"MISTRAL_API_KEY"},
	"cerebras":          {"CEREBRAS_API_KEY"},
	"groq":              {"GROQ_API_KEY"},
	"openai-compatible": {"OPENAI_COMPATIBLE_API_KEY", "OPENAI_API_KEY"},
}

// providerBaseURLs maps canonical provider names to their OpenAI-compatible
// chat completion endpoints.
var providerBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"cerebras":   "https://api.cerebras.ai/v1",
	"groq":       "https://api.groq.com/openai/v1",
}

// canonicalProviderName normalizes provider aliases so they share the same
// environment-variable mapping.
func canonicalProviderName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google", "googleai", "gemini":
		return "google"
	case "mistral", "mistralai":
		return "mistral"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// resolveAPIKey returns the API key to use for a provider. If an explicit key
// is provided it takes precedence, otherwise the function falls back to known
// environment variables. Returned value is trimmed; empty string signals that
// no key is available.
func resolveAPIKey(providerName, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}

	canonical := canonicalProviderName(providerName)
	envVars := providerEnvVars[canonical]
	for _, envVar := range envVars {
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			return value
		}
	}
	return ""
}

// ResolveAPIKey exposes the environment-variable lookup for callers that need
// credentials without an explicit configured key.
func ResolveAPIKey(providerName string) string {
	return resolveAPIKey(providerName, "")
}

// ResolveCredentials returns the API key for a provider, preferring the
// explicitly configured value over the environment.
func ResolveCredentials(providerName, configured string) string {
	return resolveAPIKey(providerName, configured)
}

// BaseURL returns the chat completion endpoint for a provider. The explicit
// URL wins when set; otherwise the canonical provider mapping applies. Empty
// string means the provider has no known OpenAI-compatible endpoint.
func BaseURL(providerName, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	return providerBaseURLs[canonicalProviderName(providerName)]
}

// EnvVarHints returns the known environment variables for a provider. This is
// useful for displaying contextual help in the UI.
func EnvVarHints(providerName string) []string {
	canonical := canonicalProviderName(providerName)
	hints := providerEnvVars[canonical]
	// Return a copy to avoid accidental external modification.
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}
