//go:build !cgo

package chunker

// boundaryOffsets falls back to line starts when tree-sitter is unavailable
// without CGo.
func boundaryOffsets(code, language string) []int {
	return lineOffsets(code)
}
