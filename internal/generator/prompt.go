package generator

import (
	"fmt"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/chunker"
)

// Options selects what kind of tests to generate and how much context to
// spend on them.
type Options struct {
	TestType     string // "unit", "integration", "api", "e2e", "all"
	TestMode     string // "implementation", "descriptions"
	ContextLevel string // "minimal", "smart", "full", "deep"
	Model        string // overrides the client's default model when set
}

// Fingerprint returns a stable string identifying the option set, used as
// part of the cache key.
func (o Options) Fingerprint() string {
	return strings.Join([]string{o.TestType, o.TestMode, o.ContextLevel}, "|")
}

func buildSystemPrompt(opts Options) string {
	var sb strings.Builder

	sb.WriteString("You are an expert software test engineer. ")
	switch opts.TestType {
	case "", "all":
		sb.WriteString("Write a thorough test suite covering unit, integration, and API behavior. ")
	default:
		fmt.Fprintf(&sb, "Write %s tests. ", opts.TestType)
	}

	if opts.TestMode == "descriptions" {
		sb.WriteString("Produce test case descriptions only, one per line, without implementation code. ")
	} else {
		sb.WriteString("Produce complete, runnable test implementations in the same language as the code under test. ")
	}

	sb.WriteString("Respond with the tests only, no commentary.")
	return sb.String()
}

// buildUserPrompt assembles the user message for the single-shot path
func buildUserPrompt(code, ragContext string, snapshot *chunker.ContextSnapshot, opts Options) string {
	var sb strings.Builder

	writeSnapshot(&sb, snapshot)
	if ragContext != "" {
		sb.WriteString("Related code from the repository:\n")
		sb.WriteString(ragContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Generate tests for the following code:\n\n")
	sb.WriteString(code)
	return sb.String()
}

// buildChunkPrompt assembles the user message for one chunk of a larger
// artifact. The position line tells the model it is seeing a slice, so it
// does not invent tests for code outside the chunk.
func buildChunkPrompt(chunk chunker.CodeChunk, opts Options) string {
	var sb strings.Builder

	snapshot := chunk.Context
	if snapshot != nil && snapshot.ChunkPosition != "" {
		fmt.Fprintf(&sb, "This is %s of a larger file. Generate tests only for the code shown here.\n\n", snapshot.ChunkPosition)
	}

	writeSnapshot(&sb, snapshot)
	if snapshot != nil && snapshot.RAGContext != "" {
		sb.WriteString("Related code from the repository (previews):\n")
		sb.WriteString(snapshot.RAGContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Code:\n\n")
	sb.WriteString(chunk.Content)
	return sb.String()
}

func writeSnapshot(sb *strings.Builder, snapshot *chunker.ContextSnapshot) {
	if snapshot == nil {
		return
	}
	if snapshot.FilePath != "" {
		fmt.Fprintf(sb, "File: %s\n", snapshot.FilePath)
	}
	if snapshot.Language != "" {
		fmt.Fprintf(sb, "Language: %s\n", snapshot.Language)
	}
	if len(snapshot.Dependencies) > 0 {
		fmt.Fprintf(sb, "Dependencies: %s\n", strings.Join(snapshot.Dependencies, ", "))
	}
	if snapshot.ProjectPatterns != "" {
		fmt.Fprintf(sb, "Project testing conventions: %s\n", snapshot.ProjectPatterns)
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
}
