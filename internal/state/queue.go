package state

import (
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// QueueOptions selects the work queue.
type QueueOptions struct {
	// Status filters by status; empty means open. StatusAll accepts any.
	Status   string
	ScanPath string
	// Chronic keeps only findings reopened at least twice.
	Chronic bool
	// Pattern restricts the queue to findings matching a command pattern.
	Pattern string
	// Count truncates the surfaced list after budgeting; 0 means no limit.
	Count int

	PerDetector int
	Global      int
}

// Queue is the budgeted list of findings to work on next.
type Queue struct {
	Items  []*types.Finding `json:"items"`
	Total  int              `json:"total"`
	Hidden []HiddenCount    `json:"hidden,omitempty"`
}

// HiddenTotal sums the per-detector hidden counts.
func (q *Queue) HiddenTotal() int {
	n := 0
	for _, h := range q.Hidden {
		n += h.Count
	}
	return n
}

// BuildQueue selects actionable findings and applies the noise budget.
// Suppressed findings never appear. It never mutates state.
func BuildQueue(s *types.State, opts QueueOptions) *Queue {
	status := opts.Status
	if status == "" {
		status = string(types.StatusOpen)
	}

	var candidates []*types.Finding
	for _, f := range PathScoped(s.Findings, opts.ScanPath) {
		if f.Suppressed {
			continue
		}
		if status != StatusAll && string(f.Status) != status {
			continue
		}
		if opts.Chronic && f.ReopenCount < 2 {
			continue
		}
		if opts.Pattern != "" && !MatchesPattern(f, opts.Pattern) {
			continue
		}
		candidates = append(candidates, f)
	}
	sort.Slice(candidates, func(i, j int) bool { return priorityLess(candidates[i], candidates[j]) })

	surfaced, hidden := ApplyNoiseBudget(candidates, opts.PerDetector, opts.Global)
	sort.SliceStable(surfaced, func(i, j int) bool { return priorityLess(surfaced[i], surfaced[j]) })
	if opts.Count > 0 && len(surfaced) > opts.Count {
		surfaced = surfaced[:opts.Count]
	}
	return &Queue{Items: surfaced, Total: len(candidates), Hidden: hidden}
}
