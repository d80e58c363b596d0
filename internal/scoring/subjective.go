package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// appendSubjective adds one entry per subjective dimension to results.
//
// The assessment score drives the dimension directly. Open review and concern
// findings are counted as issues for the work queue but never move the score;
// only a fresh review import does.
func (p *Policy) appendSubjective(results map[string]types.DimensionScore, findings map[string]*types.Finding,
	assessments map[string]*types.SubjectiveAssessment, mode Mode) {

	defaults := make([]string, 0, len(p.SubjectiveDefaults))
	isDefault := make(map[string]bool)
	for _, raw := range p.SubjectiveDefaults {
		dim := NormalizeDimensionKey(raw)
		if dim == "" || isDefault[dim] {
			continue
		}
		defaults = append(defaults, dim)
		isDefault[dim] = true
	}

	assessed := make(map[string]*types.SubjectiveAssessment, len(assessments))
	var extra []string
	for raw, a := range assessments {
		dim := NormalizeDimensionKey(raw)
		if dim == "" || a == nil {
			continue
		}
		assessed[dim] = a
		if !isDefault[dim] {
			extra = append(extra, dim)
		}
	}
	sort.Strings(extra)

	existing := make(map[string]bool, len(results))
	for name := range results {
		existing[strings.ToLower(name)] = true
	}

	for _, dim := range append(defaults, extra...) {
		a := assessed[dim]

		display := p.DisplayName(dim)
		if existing[strings.ToLower(display)] {
			display += " (subjective)"
		}

		issues := 0
		for _, f := range findings {
			if f.Detector != "review" && f.Detector != "concerns" {
				continue
			}
			if !IsFailure(mode, f.Status) {
				continue
			}
			if NormalizeDimensionKey(f.Detail.String("dimension")) == dim {
				issues++
			}
		}

		var score, assessmentScore float64
		placeholder := false
		switch {
		case a == nil:
			score = 100
		case a.Placeholder:
			placeholder = true
			assessmentScore = clamp(a.Score, 0, 100)
		case a.IntegrityPenalty == types.IntegrityPenaltyTargetMatch:
			assessmentScore = clamp(a.Score, 0, 100)
		default:
			assessmentScore = clamp(a.Score, 0, 100)
			score = assessmentScore
		}
		passRate := score / 100

		results[display] = types.DimensionScore{
			Score:  Round1(score),
			Tier:   4,
			Checks: p.SubjectiveChecks,
			Issues: issues,
			Detectors: map[string]types.DetectorScore{
				types.SubjectiveDetector: {
					Potential:        p.SubjectiveChecks,
					PassRate:         round4(passRate),
					Issues:           issues,
					WeightedFailures: round4(float64(p.SubjectiveChecks) * (1 - passRate)),
					ConfiguredWeight: round6(p.SubjectiveWeight(dim)),
					Placeholder:      placeholder,
				},
			},
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
