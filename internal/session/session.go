// Package session tracks one logical conversation between the extension user
// and the model: the message history that feeds budgeting, plus bounded
// retention so a long-lived popup session cannot grow without limit.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/testweaver-ai/testweaver/internal/llm"
)

// DefaultMaxMessages bounds how many messages a session retains
const DefaultMaxMessages = 50

// Message is one conversation entry
type Message struct {
	Role      string    `json:"role"` // "user", "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session manages a conversation session. Safe for concurrent use.
type Session struct {
	ID string

	mu          sync.RWMutex
	messages    []Message
	maxMessages int
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a session with a random identifier
func New() *Session {
	return &Session{
		ID:          newSessionID(),
		maxMessages: DefaultMaxMessages,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
}

// AddMessage appends a message, evicting the oldest entries past the
// retention bound.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(s.messages) > s.maxMessages {
		s.messages = s.messages[len(s.messages)-s.maxMessages:]
	}
	s.updatedAt = time.Now()
}

// History returns a copy of all retained messages in order
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Recent returns up to n of the most recent messages
func (s *Session) Recent(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.messages) == 0 {
		return nil
	}
	if n > len(s.messages) {
		n = len(s.messages)
	}
	return append([]Message(nil), s.messages[len(s.messages)-n:]...)
}

// Clear removes all messages
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.updatedAt = time.Now()
}

// Len returns the number of retained messages
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ToLLMMessages converts session messages into the provider message shape
func ToLLMMessages(messages []Message) []*llm.Message {
	out := make([]*llm.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, &llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func newSessionID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "session-fallback"
	}
	return hex.EncodeToString(bytes)
}
