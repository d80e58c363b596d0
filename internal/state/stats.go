package state

import (
	"strconv"

	"github.com/xyleth/desloppify-sub004/internal/scoring"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

func computeStats(findings map[string]*types.Finding) types.Stats {
	stats := types.Stats{ByTier: make(map[string]types.StatusCounts)}
	for _, f := range findings {
		stats.StatusCounts.Add(f.Status)
		stats.Total++
		key := strconv.Itoa(f.Tier)
		tc := stats.ByTier[key]
		tc.Add(f.Status)
		stats.ByTier[key] = tc
	}
	return stats
}

// Recompute refreshes stats and scores from the findings inside scanPath.
// A nil integrityTarget disables the subjective integrity policy.
func (e *Engine) Recompute(s *types.State, scanPath string, integrityTarget *float64) {
	types.EnsureDefaults(s)
	scoped := PathScoped(s.Findings, scanPath)
	s.Stats = computeStats(scoped)
	e.updateHealth(s, scoped, integrityTarget)
}

func (e *Engine) updateHealth(s *types.State, findings map[string]*types.Finding, integrityTarget *float64) {
	merged := scoring.MergePotentials(s.Potentials)
	if len(merged) == 0 {
		return
	}
	p := e.policy()

	var target *float64
	if integrityTarget != nil {
		t := clampScore(*integrityTarget)
		target = &t
	}
	assessments := s.Assessments
	integrity := scoring.IntegrityBaseline(target)
	if len(assessments) > 0 && target != nil {
		assessments, integrity = p.ApplyIntegrity(assessments, *target)
	}
	s.Integrity = integrity

	active := false
	for _, n := range merged {
		if n > 0 {
			active = true
			break
		}
	}
	if !active && len(assessments) == 0 {
		s.DimensionScores = make(map[string]types.DimensionScore)
		s.OverallScore, s.ObjectiveScore, s.StrictScore, s.VerifiedStrictScore = 100, 100, 100, 100
		return
	}

	bundle := p.ComputeBundle(findings, merged, assessments)
	dims := bundle.DimensionScores

	// Mechanical dimensions absent this time (for example a skipped slow
	// detector) keep their previous values.
	for name, prev := range s.DimensionScores {
		if _, ok := dims[name]; ok || prev.IsSubjective() {
			continue
		}
		prev.CarriedForward = true
		dims[name] = prev
	}

	s.DimensionScores = dims
	s.OverallScore, s.ObjectiveScore, s.StrictScore, s.VerifiedStrictScore = p.Aggregates(dims)
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
