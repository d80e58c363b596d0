package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

const (
	DefaultNoiseBudget       = 10
	DefaultNoiseGlobalBudget = 0
)

// HiddenCount is how many findings of one detector the budget held back.
type HiddenCount struct {
	Detector string `json:"detector"`
	Count    int    `json:"count"`
}

func priorityLess(a, b *types.Finding) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func displayLess(a, b *types.Finding) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	return priorityLess(a, b)
}

// ApplyNoiseBudget caps how many findings are surfaced.
//
// Each detector is first capped to perDetector of its highest-priority
// findings (tier, then confidence, then ID). When global is positive, the
// capped groups are drained round-robin, starting with the detector whose best
// finding ranks highest, until global findings are surfaced. Surfaced findings
// come back in display order (file, tier, confidence, ID); hidden counts are
// sorted by count descending then detector name. A non-positive budget
// disables that cap; with both disabled the input is returned unchanged.
func ApplyNoiseBudget(findings []*types.Finding, perDetector, global int) ([]*types.Finding, []HiddenCount) {
	if perDetector <= 0 && global <= 0 {
		return append([]*types.Finding(nil), findings...), nil
	}

	grouped := make(map[string][]*types.Finding)
	for _, f := range findings {
		det := f.Detector
		if det == "" {
			det = "unknown"
		}
		grouped[det] = append(grouped[det], f)
	}

	hidden := make(map[string]int)
	capped := make(map[string][]*types.Finding, len(grouped))
	for det, items := range grouped {
		sort.Slice(items, func(i, j int) bool { return priorityLess(items[i], items[j]) })
		kept := items
		if perDetector > 0 && len(items) > perDetector {
			kept = items[:perDetector]
			hidden[det] = len(items) - perDetector
		}
		capped[det] = kept
	}

	var surfaced []*types.Finding
	if global > 0 {
		order := make([]string, 0, len(capped))
		for det := range capped {
			order = append(order, det)
		}
		sort.Slice(order, func(i, j int) bool {
			// Groups are never empty here.
			a, b := capped[order[i]][0], capped[order[j]][0]
			if priorityLess(a, b) != priorityLess(b, a) {
				return priorityLess(a, b)
			}
			return order[i] < order[j]
		})

		consumed := make(map[string]int, len(order))
		for len(surfaced) < global {
			progressed := false
			for _, det := range order {
				idx := consumed[det]
				if idx >= len(capped[det]) {
					continue
				}
				surfaced = append(surfaced, capped[det][idx])
				consumed[det] = idx + 1
				progressed = true
				if len(surfaced) >= global {
					break
				}
			}
			if !progressed {
				break
			}
		}
		for det, items := range capped {
			if dropped := len(items) - consumed[det]; dropped > 0 {
				hidden[det] += dropped
			}
		}
	} else {
		for _, items := range capped {
			surfaced = append(surfaced, items...)
		}
	}

	sort.Slice(surfaced, func(i, j int) bool { return displayLess(surfaced[i], surfaced[j]) })

	counts := make([]HiddenCount, 0, len(hidden))
	for det, n := range hidden {
		counts = append(counts, HiddenCount{Detector: det, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Detector < counts[j].Detector
	})
	return surfaced, counts
}

// ResolveNoiseSettings reads the budgets from state config. Unset values use
// the defaults; negative values are clamped to zero and reported in warning.
func ResolveNoiseSettings(cfg types.Config) (perDetector, global int, warning string) {
	perDetector, global = DefaultNoiseBudget, DefaultNoiseGlobalBudget
	var warnings []string
	if cfg.FindingNoiseBudget != nil {
		perDetector = *cfg.FindingNoiseBudget
		if perDetector < 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid config `finding_noise_budget=%d`; using 0", perDetector))
			perDetector = 0
		}
	}
	if cfg.FindingNoiseGlobalBudget != nil {
		global = *cfg.FindingNoiseGlobalBudget
		if global < 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid config `finding_noise_global_budget=%d`; using 0", global))
			global = 0
		}
	}
	return perDetector, global, strings.Join(warnings, " | ")
}
