package scoring

import (
	"math"
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// DetectorStats is one detector's result in one scoring mode.
type DetectorStats struct {
	PassRate         float64
	Issues           int
	WeightedFailures float64
}

// MergePotentials sums per-language potentials into one detector -> count map.
func MergePotentials(byLang map[string]map[string]int) map[string]int {
	merged := make(map[string]int)
	for _, pots := range byLang {
		for det, n := range pots {
			merged[det] += n
		}
	}
	return merged
}

func (p *Policy) candidates(detector string, findings map[string]*types.Finding, excluded map[string]bool) []*types.Finding {
	var out []*types.Finding
	for _, f := range findings {
		if f.Detector != detector {
			continue
		}
		zone := f.Zone
		if zone == "" {
			zone = "production"
		}
		if excluded[zone] {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Policy) findingWeight(f *types.Finding, useLOC bool) float64 {
	if useLOC {
		if w, ok := f.Detail.Float("loc_weight"); ok {
			return w
		}
		return 1.0
	}
	if w, ok := p.ConfidenceWeights[f.Confidence]; ok {
		return w
	}
	return p.ConfidenceWeights[types.ConfidenceMedium]
}

// fileCountCap keeps file-count denominator semantics while preserving
// a concentration signal: 1-2 findings => 1.0, 3-5 => 1.5, 6+ => 2.0.
func fileCountCap(n int) float64 {
	switch {
	case n >= 6:
		return 2.0
	case n >= 3:
		return 1.5
	}
	return 1.0
}

func isHolistic(f *types.Finding) bool {
	return f.File == "." && f.Detail.Bool("holistic")
}

type modeFailures struct {
	issues   int
	weighted float64
}

func (p *Policy) fileBasedFailures(dp DetectorPolicy, findings []*types.Finding) map[Mode]modeFailures {
	out := make(map[Mode]modeFailures, len(Modes))
	for _, mode := range Modes {
		byFile := make(map[string]float64)
		byFileCount := make(map[string]int)
		firstWeight := make(map[string]float64)
		holistic := 0.0
		issues := 0

		for _, f := range findings {
			if !IsFailure(mode, f.Status) {
				continue
			}
			issues++
			if isHolistic(f) {
				holistic += p.findingWeight(f, false) * p.HolisticMultiplier
				continue
			}
			w := p.findingWeight(f, dp.UseLOCWeight)
			byFile[f.File] += w
			byFileCount[f.File]++
			if _, seen := firstWeight[f.File]; !seen {
				firstWeight[f.File] = w
			}
		}

		weighted := 0.0
		for file, sum := range byFile {
			if dp.UseLOCWeight {
				weighted += math.Min(sum, firstWeight[file])
			} else {
				weighted += math.Min(sum, fileCountCap(byFileCount[file]))
			}
		}
		out[mode] = modeFailures{issues: issues, weighted: weighted + holistic}
	}
	return out
}

// DetectorStatsByMode computes pass rate, issue count and weighted failures
// for each mode. Zero potential, and the review/concerns detectors, always pass.
func (p *Policy) DetectorStatsByMode(detector string, findings map[string]*types.Finding, potential int) map[Mode]DetectorStats {
	out := make(map[Mode]DetectorStats, len(Modes))
	if potential <= 0 || detector == "review" || detector == "concerns" {
		for _, mode := range Modes {
			out[mode] = DetectorStats{PassRate: 1.0}
		}
		return out
	}

	dp := p.Detector(detector)
	cands := p.candidates(detector, findings, dp.ExcludedZones)

	var failures map[Mode]modeFailures
	if dp.FileBased {
		failures = p.fileBasedFailures(dp, cands)
	} else {
		failures = make(map[Mode]modeFailures, len(Modes))
		for _, f := range cands {
			w := p.findingWeight(f, false)
			for _, mode := range Modes {
				if !IsFailure(mode, f.Status) {
					continue
				}
				mf := failures[mode]
				mf.issues++
				mf.weighted += w
				failures[mode] = mf
			}
		}
	}

	pot := float64(potential)
	for _, mode := range Modes {
		mf := failures[mode]
		out[mode] = DetectorStats{
			PassRate:         math.Max(0, (pot-mf.weighted)/pot),
			Issues:           mf.issues,
			WeightedFailures: mf.weighted,
		}
	}
	return out
}
