package state

import (
	"fmt"
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/scoring"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// ReviewImport is one batch of review output.
type ReviewImport struct {
	// Assessments maps dimension to a 0-100 score. Keys are normalized.
	Assessments map[string]float64
	// Findings are stored under the review detector regardless of the
	// detector they carry.
	Findings []types.RawFinding
	// Source labels where the assessments came from, e.g. "manual" or a model name.
	Source string
}

// ReviewDiff summarizes what a review import changed.
type ReviewDiff struct {
	New      int      `json:"new"`
	Reopened int      `json:"reopened"`
	Ignored  int      `json:"ignored"`
	Assessed []string `json:"assessed"`
}

// ImportReview upserts review findings and stores assessments.
//
// Unlike MergeScan it never auto-resolves anything: findings missing from
// the batch are left as they are. Stored assessments are replaced with the
// clamped score rounded to 0.1 and their refresh flags are cleared. Keys
// that normalize to the same dimension resolve deterministically, see
// normalizeAssessments. Scan metadata and history are untouched.
func (e *Engine) ImportReview(s *types.State, in ReviewImport) (*ReviewDiff, error) {
	raw := make([]types.RawFinding, len(in.Findings))
	for i, r := range in.Findings {
		r.Detector = reviewDetector
		if r.Tier == 0 {
			r.Tier = 3
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("review finding %d: %w", i, err)
		}
		raw[i] = r
	}

	types.EnsureDefaults(s)
	now := e.now()

	up := upsertFindings(s.Findings, raw, s.Config.Ignore, now, "")

	for key := range in.Assessments {
		if scoring.NormalizeDimensionKey(key) != key {
			delete(s.Assessments, key)
		}
	}
	scores := normalizeAssessments(in.Assessments)
	assessed := make([]string, 0, len(scores))
	for key, score := range scores {
		at := now
		s.Assessments[key] = &types.SubjectiveAssessment{
			Score:      scoring.Round1(clampScore(score)),
			Source:     in.Source,
			AssessedAt: &at,
		}
		assessed = append(assessed, key)
	}
	sort.Strings(assessed)

	e.Recompute(s, s.ScanPath, integrityTarget(s, nil))
	if err := types.ValidateInvariants(s); err != nil {
		return nil, err
	}
	return &ReviewDiff{
		New:      up.newCount,
		Reopened: up.reopened,
		Ignored:  up.ignored,
		Assessed: assessed,
	}, nil
}

// normalizeAssessments folds keys onto their normalized dimension key.
// A key already in normalized form wins over its aliases; otherwise the
// first alias in sorted order wins.
func normalizeAssessments(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	canonical := make(map[string]bool, len(in))
	for _, raw := range sortedKeys(in) {
		key := scoring.NormalizeDimensionKey(raw)
		if key == "" || canonical[key] {
			continue
		}
		if _, seen := out[key]; seen && raw != key {
			continue
		}
		out[key] = in[raw]
		canonical[key] = raw == key
	}
	return out
}
