package llm

import (
	"strings"
	"testing"
)

func TestEstimateTokensEmpty(t *testing.T) {
	est := NewHeuristicEstimator("test-model")
	if got := est.EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
}

func TestEstimateTokensHeuristic(t *testing.T) {
	est := NewHeuristicEstimator("test-model")

	tests := []struct {
		text     string
		expected int
	}{
		{"a", 1},        // rounds up
		{"abcd", 1},     // exactly one token
		{"abcde", 2},    // rounds up past the boundary
		{"abcdefgh", 2}, // two full tokens
	}

	for _, tt := range tests {
		if got := est.EstimateTokens(tt.text); got != tt.expected {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.expected)
		}
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	est := NewEstimator("some-unrecognized-model")

	prev := 0
	text := ""
	for i := 0; i < 50; i++ {
		text += "func handler(w http.ResponseWriter, r *http.Request) {}\n"
		got := est.EstimateTokens(text)
		if got < prev {
			t.Fatalf("token estimate decreased from %d to %d as input grew", prev, got)
		}
		prev = got
	}
}

func TestEstimateTokensStable(t *testing.T) {
	est := NewEstimator("gpt-4o")
	text := strings.Repeat("let total = items.reduce((a, b) => a + b.price, 0);\n", 20)

	first := est.EstimateTokens(text)
	for i := 0; i < 5; i++ {
		if got := est.EstimateTokens(text); got != first {
			t.Fatalf("estimate not stable across calls: %d then %d", first, got)
		}
	}
}

func TestCountMessagesTokensOverhead(t *testing.T) {
	est := NewHeuristicEstimator("test-model")

	messages := []*Message{
		{Role: "user", Content: "abcd"},
		{Role: "assistant", Content: "abcdefgh"},
	}

	perContent := est.EstimateTokens("abcd") + est.EstimateTokens("abcdefgh")
	got := est.CountMessagesTokens(messages)
	if got != perContent+2*perMessageOverhead {
		t.Fatalf("CountMessagesTokens = %d, want %d", got, perContent+2*perMessageOverhead)
	}
}

func TestCountMessagesTokensSystemFraming(t *testing.T) {
	est := NewHeuristicEstimator("test-model")

	without := est.CountMessagesTokens([]*Message{{Role: "user", Content: "abcd"}})
	with := est.CountMessagesTokens([]*Message{{Role: "system", Content: "abcd"}})
	if with != without+systemMessageOverhead {
		t.Fatalf("system message overhead not applied: user=%d system=%d", without, with)
	}
}

func TestCountMessagesTokensSkipsNil(t *testing.T) {
	est := NewHeuristicEstimator("test-model")
	if got := est.CountMessagesTokens([]*Message{nil, nil}); got != 0 {
		t.Fatalf("nil messages should contribute nothing, got %d", got)
	}
}
