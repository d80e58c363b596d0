package scoring

import (
	"math"
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// IntegrityBaseline is the audit result before any assessment is inspected.
// A nil target disables the policy.
func IntegrityBaseline(target *float64) *types.SubjectiveIntegrity {
	meta := &types.SubjectiveIntegrity{
		Status:            types.IntegrityDisabled,
		MatchedDimensions: []string{},
		ResetDimensions:   []string{},
	}
	if target != nil {
		t := math.Round(*target*100) / 100
		meta.TargetScore = &t
		meta.Status = types.IntegrityPass
	}
	return meta
}

// ApplyIntegrity zeroes subjective scores that cluster on the target.
//
// One dimension landing on the target is informational (warn). ResetThreshold
// or more landing on it at once is treated as rubber-stamping: every matching
// dimension is reset to 0 and tagged target_match_reset. The input map is never
// modified; the returned map is a copy when any reset happened.
func (p *Policy) ApplyIntegrity(assessments map[string]*types.SubjectiveAssessment, target float64) (map[string]*types.SubjectiveAssessment, *types.SubjectiveIntegrity) {
	target = clamp(target, 0, 100)
	meta := IntegrityBaseline(&target)

	var matched []string
	for dim, a := range assessments {
		if a == nil {
			continue
		}
		if p.MatchesTarget(clamp(a.Score, 0, 100), target) {
			matched = append(matched, dim)
		}
	}
	sort.Strings(matched)
	meta.MatchedCount = len(matched)
	if matched != nil {
		meta.MatchedDimensions = matched
	}

	if len(matched) < p.ResetThreshold {
		if len(matched) > 0 {
			meta.Status = types.IntegrityWarn
		}
		return assessments, meta
	}

	adjusted := make(map[string]*types.SubjectiveAssessment, len(assessments))
	for dim, a := range assessments {
		if a == nil {
			continue
		}
		cp := *a
		adjusted[dim] = &cp
	}
	for _, dim := range matched {
		adjusted[dim].Score = 0
		adjusted[dim].IntegrityPenalty = types.IntegrityPenaltyTargetMatch
	}
	meta.Status = types.IntegrityPenalized
	meta.ResetDimensions = append([]string(nil), matched...)
	return adjusted, meta
}
