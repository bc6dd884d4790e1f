package memory

import "strings"

// overflow reports whether a history of n turns needs compaction under the
// given limit.
func overflow(n, limit int) bool {
	return limit > 0 && n > limit
}

// splitForCompaction partitions turns (oldest first) into the span to drop
// or summarize and the span to keep, so that keep turns remain afterwards.
// Returns needed=false when the history fits.
func splitForCompaction(turns []Turn, limit, keep int) (drop, rest []Turn, needed bool) {
	if !overflow(len(turns), limit) {
		return nil, turns, false
	}
	if keep <= 0 || keep > limit {
		keep = limit
	}
	cut := len(turns) - keep
	return turns[:cut], turns[cut:], true
}

// transcript renders a span of turns as plain lines for the summarizer.
func transcript(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
