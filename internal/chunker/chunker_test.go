package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/llm"
)

// chunkTestModel resolves to the default profile: 8192 context, 1024 reserved
const chunkTestModel = "chunker-test-model"

func newChunker() *Chunker {
	return New(llm.NewHeuristicEstimator(chunkTestModel))
}

func genGoSource(funcs int) string {
	var sb strings.Builder
	sb.WriteString("package sample\n\n")
	for i := 0; i < funcs; i++ {
		fmt.Fprintf(&sb, "func Handler%d(x int) int {\n\tresult := x * %d\n\treturn result + %d\n}\n\n", i, i, i)
	}
	return sb.String()
}

func TestSingleChunkWhenCodeFits(t *testing.T) {
	c := newChunker()
	code := genGoSource(5)

	chunks := c.CreateSemanticChunks(code, "go", chunkTestModel)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Equal(t, code, chunks[0].Content, "round trip: single chunk content equals the input")
}

func TestEmptyCodeReturnsNoChunks(t *testing.T) {
	c := newChunker()
	assert.Empty(t, c.CreateSemanticChunks("", "go", chunkTestModel))
}

func TestChunksRespectBudgetAndOrder(t *testing.T) {
	c := newChunker()
	// ~2000 funcs at ~20 tokens each vastly exceeds the 3584-token chunk budget
	code := genGoSource(2000)

	chunks := c.CreateSemanticChunks(code, "go", chunkTestModel)
	require.Greater(t, len(chunks), 1)

	budget := int(float64(llm.GetAvailableTokens(chunkTestModel)) * consts.ChunkBudgetFraction)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index, "chunks produced in source order")
		assert.Equal(t, len(chunks), chunk.Total)
		assert.LessOrEqual(t, chunk.TokenCount, budget, "chunk %d over budget", i)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	c := newChunker()

	inputs := map[string]string{
		"go":        genGoSource(1500),
		"python":    strings.Repeat("def handler(x):\n    return x * 2\n\n", 8000),
		"unknown":   strings.Repeat("some line of text that goes on\n", 9000),
		"no-breaks": strings.Repeat("x", 200000),
	}

	for name, code := range inputs {
		t.Run(name, func(t *testing.T) {
			language := name
			if name == "no-breaks" {
				language = "unknown"
			}
			chunks := c.CreateSemanticChunks(code, language, chunkTestModel)
			require.NotEmpty(t, chunks)

			var sb strings.Builder
			for _, chunk := range chunks {
				sb.WriteString(chunk.Content)
			}
			assert.Equal(t, code, sb.String(), "concatenated chunks must reproduce the original")
		})
	}
}

func TestPrepareChunksWithContextCopies(t *testing.T) {
	c := newChunker()
	chunks := []CodeChunk{
		{Index: 0, Total: 2, Content: "a"},
		{Index: 1, Total: 2, Content: "b"},
	}
	snapshot := &ContextSnapshot{
		Language:     "go",
		FilePath:     "pkg/handler.go",
		Dependencies: []string{"net/http"},
	}

	prepared := c.PrepareChunksWithContext(chunks, snapshot)

	require.Len(t, prepared, 2)
	assert.Equal(t, "chunk 1 of 2", prepared[0].Context.ChunkPosition)
	assert.Equal(t, "chunk 2 of 2", prepared[1].Context.ChunkPosition)

	// Mutating one chunk's snapshot must not affect siblings or the original
	prepared[0].Context.Dependencies[0] = "mutated"
	assert.Equal(t, "net/http", prepared[1].Context.Dependencies[0])
	assert.Equal(t, "net/http", snapshot.Dependencies[0])
}

func TestCreateBatches(t *testing.T) {
	chunks := make([]CodeChunk, 7)
	for i := range chunks {
		chunks[i] = CodeChunk{Index: i, Total: 7}
	}

	batches := CreateBatches(chunks, 3)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)

	// Order preserved across batches
	next := 0
	for _, batch := range batches {
		for _, chunk := range batch {
			assert.Equal(t, next, chunk.Index)
			next++
		}
	}
}

func TestCreateBatchesInvalidConcurrency(t *testing.T) {
	chunks := []CodeChunk{{Index: 0, Total: 1}}
	batches := CreateBatches(chunks, 0)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
}

func TestContextSnapshotCloneNil(t *testing.T) {
	var snapshot *ContextSnapshot
	assert.Nil(t, snapshot.Clone())
}
