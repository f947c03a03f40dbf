package session

import (
	"fmt"
	"testing"
)

func TestAddAndHistory(t *testing.T) {
	s := New()

	s.AddMessage("user", "generate tests for this handler")
	s.AddMessage("assistant", "here are the tests")

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", history[0].Role, history[1].Role)
	}
	if history[0].Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestRetentionBound(t *testing.T) {
	s := New()

	for i := 0; i < DefaultMaxMessages+10; i++ {
		s.AddMessage("user", fmt.Sprintf("message %d", i))
	}

	if s.Len() != DefaultMaxMessages {
		t.Fatalf("expected retention at %d messages, got %d", DefaultMaxMessages, s.Len())
	}

	history := s.History()
	if history[0].Content != "message 10" {
		t.Fatalf("oldest messages should be evicted first, got %q", history[0].Content)
	}
}

func TestRecent(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.AddMessage("user", fmt.Sprintf("m%d", i))
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(recent))
	}
	if recent[0].Content != "m3" || recent[1].Content != "m4" {
		t.Fatalf("unexpected recent messages: %v", recent)
	}

	if got := s.Recent(0); got != nil {
		t.Fatalf("Recent(0) should be nil, got %v", got)
	}
	if got := s.Recent(100); len(got) != 5 {
		t.Fatalf("Recent over length should return all, got %d", len(got))
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := New()
	s.AddMessage("user", "original")

	history := s.History()
	history[0].Content = "mutated"

	if s.History()[0].Content != "original" {
		t.Fatal("History must return a copy")
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.AddMessage("user", "something")
	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("expected empty session after Clear, got %d", s.Len())
	}
}

func TestToLLMMessages(t *testing.T) {
	s := New()
	s.AddMessage("user", "hello")

	msgs := ToLLMMessages(s.History())
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Fatalf("unexpected conversion: %+v", msgs)
	}
}
