package chunker

// lineOffsets returns the byte offset of every line start plus the end of the
// input, in ascending order.
func lineOffsets(code string) []int {
	offsets := make([]int, 0, 64)
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' && i+1 < len(code) {
			offsets = append(offsets, i+1)
		}
	}
	offsets = append(offsets, len(code))
	return offsets
}
