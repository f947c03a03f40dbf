// Package rag models the retrieval-augmented context fed into generation.
// The retrieval index itself lives in an external collaborator; this package
// owns the snippet data model and the summarization that keeps per-chunk
// context cost roughly constant when a request is split across many chunks.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/llm"
)

// Snippet is one retrieved code fragment with its relevance score in [0,1]
type Snippet struct {
	FilePath       string  `json:"file_path"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Retriever is the port to the external retrieval collaborator
type Retriever interface {
	RetrieveContext(ctx context.Context, repoID, query string, k int) ([]Snippet, error)
}

// Summary is the compressed form of a snippet list
type Summary struct {
	Text            string
	Sources         []string
	EstimatedTokens int
}

// DefaultPreviewChars is the per-snippet preview length used when the caller
// passes 0.
const DefaultPreviewChars = 200

const snippetSeparator = "\n---\n"

// Summarize compresses snippets into short previews: a header with the file
// path and relevance percentage, followed by at most previewChars characters
// of content. When N chunks each embed the retrieved context, full snippet
// text multiplies token cost by N; previews keep the added cost roughly
// constant regardless of chunk count. Single-chunk processing should use the
// full snippet text instead (see JoinFull).
func Summarize(est *llm.Estimator, snippets []Snippet, previewChars int) Summary {
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}

	parts := make([]string, 0, len(snippets))
	sources := make([]string, 0, len(snippets))

	for _, snippet := range snippets {
		if snippet.Content == "" {
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s (relevance %.0f%%)\n", snippet.FilePath, snippet.RelevanceScore*100)
		sb.WriteString(preview(snippet.Content, previewChars))

		parts = append(parts, sb.String())
		sources = append(sources, snippet.FilePath)
	}

	text := strings.Join(parts, snippetSeparator)
	return Summary{
		Text:            text,
		Sources:         sources,
		EstimatedTokens: est.EstimateTokens(text),
	}
}

// JoinFull concatenates the full snippet texts with headers, for the
// single-shot path where token cost is paid once.
func JoinFull(snippets []Snippet) string {
	parts := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		if snippet.Content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:\n%s", snippet.FilePath, snippet.Content))
	}
	return strings.Join(parts, snippetSeparator)
}

// preview returns at most n characters of content, cut at a rune boundary,
// with an ellipsis marker when truncated.
func preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "…"
}
