// Package merge combines ordered per-chunk outputs into one coherent
// artifact. Output is deterministic given the same result set: ordering
// comes from chunk indices, never from arrival time.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/testweaver-ai/testweaver/internal/batch"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

// StrategyIntelligent orders by chunk index, trims redundant boundary
// whitespace, and deduplicates repeated section separators. It is the only
// implemented strategy; unknown names fall back to it.
const StrategyIntelligent = "intelligent"

const sectionSeparator = "\n\n// ----------------------------------------\n\n"

// Merge combines per-chunk results into one artifact. Successful chunk
// outputs are concatenated with a visible separator in chunk-index order.
// Chunks that errored become placeholders noting the chunk number and the
// failure kind, so an omission stays traceable instead of disappearing
// silently.
func Merge(results []batch.Result[string], strategy string) string {
	if strategy != StrategyIntelligent {
		logger.Debug("merge: unknown strategy %q, using %q", strategy, StrategyIntelligent)
	}

	ordered := append([]batch.Result[string](nil), results...)
	sort.Slice(ordered, func(a, b int) bool {
		return ordered[a].Index < ordered[b].Index
	})

	sections := make([]string, 0, len(ordered))
	for _, result := range ordered {
		if result.Err != nil {
			sections = append(sections, fmt.Sprintf(
				"// [chunk %d omitted: %s]", result.Index+1, llm.KindOf(result.Err)))
			continue
		}

		section := cleanSection(result.Output)
		if section == "" {
			sections = append(sections, fmt.Sprintf("// [chunk %d produced no output]", result.Index+1))
			continue
		}
		sections = append(sections, section)
	}

	return strings.Join(sections, sectionSeparator)
}

// cleanSection trims boundary whitespace and strips separator lines a model
// may have echoed back, so joining never doubles a boundary.
func cleanSection(output string) string {
	trimmed := strings.TrimSpace(output)
	separatorLine := strings.TrimSpace(sectionSeparator)

	lines := strings.Split(trimmed, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == separatorLine {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
