// Package chunker splits large code artifacts into ordered, token-bounded
// pieces. Splits land on syntactic boundaries (top-level declarations via
// tree-sitter) when the language is supported, falling back to line
// boundaries. Concatenating the chunk contents reproduces the original code.
package chunker

import (
	"fmt"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

// ContextSnapshot is the shared context attached to every chunk derived from
// one generation request. Attach copies it per chunk, so adjusting one
// chunk's snapshot never affects siblings.
type ContextSnapshot struct {
	Language        string
	FilePath        string
	Dependencies    []string
	ProjectPatterns string
	RAGContext      string
	RAGSources      []string
	HistorySummary  string
	ChunkPosition   string // "chunk N of M", set during Attach
}

// Clone returns a deep copy of the snapshot
func (s *ContextSnapshot) Clone() *ContextSnapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Dependencies = append([]string(nil), s.Dependencies...)
	clone.RAGSources = append([]string(nil), s.RAGSources...)
	return &clone
}

// CodeChunk is one bounded slice of the original code. Index defines the
// position in the original source; Total is fixed once chunking completes.
type CodeChunk struct {
	Index      int
	Total      int
	Content    string
	TokenCount int
	Context    *ContextSnapshot
}

// Chunker splits code under a per-chunk token budget
type Chunker struct {
	est *llm.Estimator
	// fraction of the model's available tokens one chunk may use
	fraction float64
}

// New creates a Chunker using the given estimator
func New(est *llm.Estimator) *Chunker {
	return &Chunker{est: est, fraction: consts.ChunkBudgetFraction}
}

// CreateSemanticChunks splits code into ordered chunks, each estimated under
// the model's per-chunk budget. Code that already fits is returned as a
// single chunk (total=1); callers should special-case that and skip the batch
// path. Zero-length code returns an empty slice, which callers must treat as
// an input-validation error.
func (c *Chunker) CreateSemanticChunks(code, language, modelID string) []CodeChunk {
	if code == "" {
		return nil
	}

	maxTokens := int(float64(llm.GetAvailableTokens(modelID)) * c.fraction)
	if maxTokens <= 0 {
		maxTokens = 1
	}

	if c.est.EstimateTokens(code) <= maxTokens {
		return []CodeChunk{{
			Index:      0,
			Total:      1,
			Content:    code,
			TokenCount: c.est.EstimateTokens(code),
		}}
	}

	segments := c.splitAtBoundaries(code, language, maxTokens)
	logger.Debug("chunker: split %d bytes of %s into %d chunks (budget %d tokens)",
		len(code), language, len(segments), maxTokens)

	chunks := make([]CodeChunk, len(segments))
	for i, segment := range segments {
		chunks[i] = CodeChunk{
			Index:      i,
			Total:      len(segments),
			Content:    segment,
			TokenCount: c.est.EstimateTokens(segment),
		}
	}
	return chunks
}

// PrepareChunksWithContext attaches a per-chunk copy of the shared snapshot,
// annotating each chunk with its position.
func (c *Chunker) PrepareChunksWithContext(chunks []CodeChunk, snapshot *ContextSnapshot) []CodeChunk {
	prepared := make([]CodeChunk, len(chunks))
	for i, chunk := range chunks {
		ctx := snapshot.Clone()
		if ctx == nil {
			ctx = &ContextSnapshot{}
		}
		ctx.ChunkPosition = fmt.Sprintf("chunk %d of %d", chunk.Index+1, chunk.Total)
		chunk.Context = ctx
		prepared[i] = chunk
	}
	return prepared
}

// CreateBatches partitions chunks into groups of at most maxConcurrent,
// preserving order; the last group may be smaller.
func CreateBatches(chunks []CodeChunk, maxConcurrent int) [][]CodeChunk {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var batches [][]CodeChunk
	for start := 0; start < len(chunks); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}

// splitAtBoundaries partitions code into segments each under maxTokens,
// preferring syntactic boundaries and falling back to lines. Segments are
// exact substrings of the input partitioned at boundary offsets, so their
// concatenation reproduces the original code.
func (c *Chunker) splitAtBoundaries(code, language string, maxTokens int) []string {
	boundaries := boundaryOffsets(code, language)

	var segments []string
	start := 0
	prev := 0

	flush := func(end int) {
		if end > start {
			segments = append(segments, code[start:end])
			start = end
		}
	}

	for _, offset := range boundaries {
		if offset <= start || offset > len(code) {
			continue
		}
		if c.est.EstimateTokens(code[start:offset]) > maxTokens {
			// Adding up to this boundary overflows: close the segment at the
			// previous boundary, or split the oversized span by lines
			if prev > start {
				flush(prev)
			}
			for c.est.EstimateTokens(code[start:offset]) > maxTokens {
				cut := c.lineCut(code, start, offset, maxTokens)
				if cut <= start {
					break
				}
				flush(cut)
			}
		}
		prev = offset
	}

	// Remaining tail, split by lines if still oversized
	for start < len(code) && c.est.EstimateTokens(code[start:]) > maxTokens {
		cut := c.lineCut(code, start, len(code), maxTokens)
		if cut <= start {
			break
		}
		flush(cut)
	}
	flush(len(code))

	if len(segments) == 0 {
		segments = []string{code}
	}
	return segments
}

// lineCut finds the largest offset in (start, end] under the token budget,
// preferring the last newline inside the window and falling back to a rune
// boundary when a single line is itself oversized.
func (c *Chunker) lineCut(code string, start, end, maxTokens int) int {
	// chars ≈ tokens*4 gives a first guess; walk back to stay under budget
	guess := start + maxTokens*4
	if guess > end {
		guess = end
	}
	for guess > start && c.est.EstimateTokens(code[start:guess]) > maxTokens {
		window := code[start:guess]
		idx := strings.LastIndexByte(window[:len(window)-1], '\n')
		if idx <= 0 {
			// single oversized line: halve at a rune boundary
			guess = start + runeFloor(window, (guess-start)/2)
			continue
		}
		guess = start + idx + 1
	}
	if guess <= start {
		return start
	}
	return guess
}

// runeFloor returns the largest byte length ≤ n that does not split a rune
func runeFloor(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return n
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
