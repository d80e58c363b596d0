package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

func reviewRaw(file, name, dim string) types.RawFinding {
	return types.RawFinding{
		Detector: "ignored-anyway",
		File:     file,
		Name:     name,
		Summary:  "review: " + name,
		Detail:   types.Detail{"dimension": dim},
	}
}

func TestImportReview_StoresAssessments(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()
	s.Potentials["python"] = map[string]int{"unused": 10}
	stale := testNow
	s.Assessments["naming_quality"] = &types.SubjectiveAssessment{
		Score: 40, NeedsReviewRefresh: true, RefreshReason: "review_finding_fixed", StaleSince: &stale,
	}

	diff, err := e.ImportReview(s, ReviewImport{
		Assessments: map[string]float64{
			"Naming Quality": 87.46,
			"logic-clarity":  140,
			"type_safety":    -3,
		},
		Source: "manual",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"logic_clarity", "naming_quality", "type_safety"}, diff.Assessed)

	naming := s.Assessments["naming_quality"]
	require.NotNil(t, naming)
	assert.Equal(t, 87.5, naming.Score)
	assert.False(t, naming.NeedsReviewRefresh)
	assert.Empty(t, naming.RefreshReason)
	assert.Nil(t, naming.StaleSince)
	assert.Equal(t, "manual", naming.Source)
	assert.NotContains(t, s.Assessments, "Naming Quality")

	assert.Equal(t, 100.0, s.Assessments["logic_clarity"].Score)
	assert.Equal(t, 0.0, s.Assessments["type_safety"].Score)
	assert.Equal(t, 87.5, s.DimensionScores["Naming Quality"].Score)
}

func TestImportReview_NeverAutoResolves(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()

	_, err := e.ImportReview(s, ReviewImport{Findings: []types.RawFinding{
		reviewRaw("src/api.py", "leaky_abstraction", "abstraction_fitness"),
		reviewRaw("src/db.py", "vague_names", "naming_quality"),
	}})
	require.NoError(t, err)
	require.Len(t, s.Findings, 2)

	f := s.Findings["review::src/api.py::leaky_abstraction"]
	require.NotNil(t, f)
	assert.Equal(t, "review", f.Detector)
	assert.Equal(t, 3, f.Tier)
	assert.Equal(t, types.StatusOpen, f.Status)

	diff, err := e.ImportReview(s, ReviewImport{Findings: []types.RawFinding{
		reviewRaw("src/db.py", "vague_names", "naming_quality"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, diff.New)
	assert.Equal(t, types.StatusOpen, f.Status, "missing from the batch stays open")
	assert.Equal(t, 0, s.ScanCount)
	assert.Empty(t, s.ScanHistory)
}

func TestImportReview_ScanLeavesReviewFindingsAlone(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()
	_, err := e.ImportReview(s, ReviewImport{Findings: []types.RawFinding{
		reviewRaw("src/api.py", "leaky_abstraction", "abstraction_fitness"),
	}})
	require.NoError(t, err)

	diff := mustMerge(t, e, s, nil, MergeOptions{Potentials: map[string]int{"unused": 10}})
	assert.Contains(t, diff.SuspectDetectors, "review")
	assert.Equal(t, types.StatusOpen, s.Findings["review::src/api.py::leaky_abstraction"].Status)
}

func TestImportReview_InvalidFindingLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()
	bad := reviewRaw("", "x", "naming_quality")

	_, err := e.ImportReview(s, ReviewImport{
		Assessments: map[string]float64{"naming_quality": 70},
		Findings:    []types.RawFinding{bad},
	})
	require.ErrorIs(t, err, types.ErrInvalidFinding)
	assert.Empty(t, s.Assessments)
	assert.Empty(t, s.Findings)
}

func TestImportReview_ReopensFixedFinding(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()
	f := addFinding(s, "review", "src/api.py", "leaky_abstraction", types.StatusFixed)

	diff, err := e.ImportReview(s, ReviewImport{Findings: []types.RawFinding{
		reviewRaw("src/api.py", "leaky_abstraction", "abstraction_fitness"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, diff.Reopened)
	assert.Equal(t, types.StatusOpen, f.Status)
	assert.Equal(t, 1, f.ReopenCount)
}

func TestImportReview_UsesConfiguredIntegrityTarget(t *testing.T) {
	e := newTestEngine()
	s := types.NewState()
	s.Potentials["python"] = map[string]int{"unused": 10}
	s.Config.TargetStrictScore = floatPtr(90)

	_, err := e.ImportReview(s, ReviewImport{Assessments: map[string]float64{
		"naming_quality": 90,
		"logic_clarity":  90.04,
	}})
	require.NoError(t, err)

	require.NotNil(t, s.Integrity)
	assert.Equal(t, types.IntegrityPenalized, s.Integrity.Status)
	require.NotNil(t, s.Integrity.TargetScore)
	assert.Equal(t, 90.0, *s.Integrity.TargetScore)
	assert.Equal(t, []string{"logic_clarity", "naming_quality"}, s.Integrity.ResetDimensions)
	assert.Equal(t, 90.0, s.Assessments["naming_quality"].Score)
}

func TestImportReview_DuplicateKeysAreDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newTestEngine()
		s := types.NewState()
		diff, err := e.ImportReview(s, ReviewImport{Assessments: map[string]float64{
			"Naming Quality": 60,
			"naming-quality": 70,
			"naming_quality": 80,
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"naming_quality"}, diff.Assessed)
		assert.Equal(t, 80.0, s.Assessments["naming_quality"].Score)
		assert.Len(t, s.Assessments, 1)
	}
}
