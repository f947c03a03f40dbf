//go:build cgo

package chunker

import (
	"sort"
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/testweaver-ai/testweaver/internal/logger"
)

var boundaryLanguages = map[string]unsafe.Pointer{
	"go":         tree_sitter_go.Language(),
	"golang":     tree_sitter_go.Language(),
	"python":     tree_sitter_python.Language(),
	"py":         tree_sitter_python.Language(),
	"typescript": tree_sitter_typescript.LanguageTypescript(),
	"ts":         tree_sitter_typescript.LanguageTypescript(),
	"javascript": tree_sitter_typescript.LanguageTypescript(), // TypeScript parser handles JS
	"js":         tree_sitter_typescript.LanguageTypescript(),
	"tsx":        tree_sitter_typescript.LanguageTSX(),
	"jsx":        tree_sitter_typescript.LanguageTSX(),
	"bash":       tree_sitter_bash.Language(),
	"sh":         tree_sitter_bash.Language(),
}

// boundaryOffsets returns sorted byte offsets of candidate split points.
// With tree-sitter support for the language, the starts of top-level
// declarations (functions, classes, blocks) are used; otherwise, or when
// parsing fails, line starts serve as boundaries.
func boundaryOffsets(code, language string) []int {
	lang, ok := boundaryLanguages[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return lineOffsets(code)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(lang)); err != nil {
		logger.Warn("chunker: failed to set %s parser language: %v", language, err)
		return lineOffsets(code)
	}

	tree := parser.Parse([]byte(code), nil)
	if tree == nil {
		logger.Warn("chunker: %s parse returned nil tree, using line boundaries", language)
		return lineOffsets(code)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return lineOffsets(code)
	}

	offsets := make([]int, 0, root.ChildCount()+1)
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		offsets = append(offsets, int(child.StartByte()))
	}
	offsets = append(offsets, len(code))

	// Too few top-level nodes to split on (e.g. one giant declaration):
	// line boundaries give the splitter something to work with
	if len(offsets) < 3 {
		return mergeOffsets(offsets, lineOffsets(code))
	}

	sort.Ints(offsets)
	return offsets
}

func mergeOffsets(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	merged := make([]int, 0, len(a)+len(b))
	for _, offs := range [][]int{a, b} {
		for _, o := range offs {
			if !seen[o] {
				seen[o] = true
				merged = append(merged, o)
			}
		}
	}
	sort.Ints(merged)
	return merged
}
