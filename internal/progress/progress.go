// Package progress defines the update contract between the generation
// pipeline and whatever UI renders it. The core emits updates; it does not
// know how they are displayed.
package progress

// Update describes one progress or streaming event emitted during generation.
type Update struct {
	// Delta is the newest streamed content fragment, empty for pure progress ticks
	Delta string
	// FullContent is the text accumulated so far on the current stream
	FullContent string
	// Processed and Total count settled chunk tasks
	Processed int
	Total     int
	// Percentage is Processed/Total scaled to 0..100
	Percentage float64
	// IsLast marks the final update of a generation
	IsLast bool
}

// Callback receives progress updates. Implementations must be fast; the
// pipeline invokes them inline.
type Callback func(Update)

// Dispatch sends the update if the callback is set.
func Dispatch(cb Callback, update Update) {
	if cb == nil {
		return
	}
	cb(update)
}

// Percent computes processed/total as a 0..100 percentage
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(processed) / float64(total) * 100
}
