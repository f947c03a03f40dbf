package web

import (
	"time"

	"github.com/testweaver-ai/testweaver/internal/rag"
)

// Message types
const (
	// inbound from the extension
	MessageTypeGenerate  = "generate"
	MessageTypeCancel    = "cancel"
	MessageTypeClear     = "clear"
	MessageTypeGetConfig = "get_config"

	// outbound to the extension
	MessageTypeDelta    = "delta"
	MessageTypeProgress = "progress"
	MessageTypeDone     = "done"
	MessageTypeError    = "error"
	MessageTypeSystem   = "system"
	MessageTypeConfig   = "config"
)

// GenerateOptions mirrors the option fields the extension sends
type GenerateOptions struct {
	TestType     string `json:"test_type,omitempty"`     // unit, integration, api, e2e, all
	TestMode     string `json:"test_mode,omitempty"`     // implementation, descriptions
	ContextLevel string `json:"context_level,omitempty"` // minimal, smart, full, deep
	Model        string `json:"model,omitempty"`
}

// CodeContext describes the scraped artifact
type CodeContext struct {
	FilePath        string   `json:"file_path,omitempty"`
	Language        string   `json:"language,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	ProjectPatterns string   `json:"project_patterns,omitempty"`
}

// WebMessage represents a message sent over WebSocket
type WebMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	// generate request payload
	Code     string           `json:"code,omitempty"`
	Options  *GenerateOptions `json:"options,omitempty"`
	Context  *CodeContext     `json:"context,omitempty"`
	Snippets []rag.Snippet    `json:"snippets,omitempty"`

	// streaming and terminal payloads
	Content     string  `json:"content,omitempty"`
	FullContent string  `json:"full_content,omitempty"`
	Processed   int     `json:"processed,omitempty"`
	Total       int     `json:"total,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
	IsLast      bool    `json:"is_last,omitempty"`
	Chunked     bool    `json:"chunked,omitempty"`
	TokensUsed  int     `json:"tokens_used,omitempty"`

	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}
