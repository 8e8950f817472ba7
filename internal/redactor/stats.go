package redactor

import (
	"fmt"
	"sort"
	"strings"
)

// Stats counts the values masked by RedactWithStats.
type Stats struct {
	TotalMatches int64            // Total number of values masked
	ByPattern    map[string]int64 // Match count per pattern tag
}

// NewStats creates a new Stats instance with initialized map.
func NewStats() *Stats {
	return &Stats{
		ByPattern: make(map[string]int64),
	}
}

func (s *Stats) record(tag string) {
	s.TotalMatches++
	s.ByPattern[tag]++
}

// Add combines another Stats into this one.
func (s *Stats) Add(other *Stats) {
	if other == nil {
		return
	}
	s.TotalMatches += other.TotalMatches
	for pattern, count := range other.ByPattern {
		s.ByPattern[pattern] += count
	}
}

// String returns a human-readable summary of the stats.
func (s *Stats) String() string {
	if s.TotalMatches == 0 {
		return "no redactions"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d matches (", s.TotalMatches)
	for i, pc := range s.PatternSummary() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %d", pc.Pattern, pc.Count)
	}
	sb.WriteString(")")
	return sb.String()
}

// PatternSummary returns pattern counts sorted by count descending, then by
// pattern name.
func (s *Stats) PatternSummary() []PatternCount {
	counts := make([]PatternCount, 0, len(s.ByPattern))
	for pattern, count := range s.ByPattern {
		counts = append(counts, PatternCount{Pattern: pattern, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Pattern < counts[j].Pattern
	})
	return counts
}

// PatternCount represents a pattern and its match count.
type PatternCount struct {
	Pattern string
	Count   int64
}
