package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingID(t *testing.T) {
	tests := []struct {
		name     string
		detector string
		file     string
		item     string
		want     string
	}{
		{"with name", "unused", "src/a.py", "Foo", "unused::src/a.py::Foo"},
		{"without name", "structural", "src/big.py", "", "structural::src/big.py"},
		{"leading dot slash", "unused", "./src/a.py", "Foo", "unused::src/a.py::Foo"},
		{"backslashes", "unused", `src\pkg\a.py`, "Foo", "unused::src/pkg/a.py::Foo"},
		{"redundant segments", "smells", "src//x/../x.ts", "async_no_await", "smells::src/x.ts::async_no_await"},
		{"codebase wide", "review", ".", "naming", "review::.::naming"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindingID(tt.detector, tt.file, tt.item)
			assert.Equal(t, tt.want, got)
			// Deterministic across repeated computation.
			assert.Equal(t, got, FindingID(tt.detector, tt.file, tt.item))
		})
	}
}

func TestFindingIDCollisionFree(t *testing.T) {
	seen := map[string]string{}
	triples := [][3]string{
		{"unused", "a.py", "x"},
		{"unused", "a.py", ""},
		{"unused", "b.py", "x"},
		{"logs", "a.py", "x"},
		{"unused", "a.py", "y"},
	}
	for _, tr := range triples {
		id := FindingID(tr[0], tr[1], tr[2])
		_, dup := seen[id]
		require.False(t, dup, "collision for %v", tr)
		seen[id] = tr[0]
	}
}

func TestRawFindingValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawFinding
		wantErr bool
	}{
		{"valid", RawFinding{Detector: "unused", File: "a.py", Tier: 2, Confidence: ConfidenceHigh}, false},
		{"empty confidence ok", RawFinding{Detector: "unused", File: "a.py", Tier: 2}, false},
		{"missing detector", RawFinding{File: "a.py", Tier: 2}, true},
		{"detector with separator", RawFinding{Detector: "a::b", File: "a.py", Tier: 2}, true},
		{"missing file", RawFinding{Detector: "unused", Tier: 2}, true},
		{"tier too low", RawFinding{Detector: "unused", File: "a.py", Tier: 0}, true},
		{"tier too high", RawFinding{Detector: "unused", File: "a.py", Tier: 5}, true},
		{"bad confidence", RawFinding{Detector: "unused", File: "a.py", Tier: 1, Confidence: "certain"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.raw.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidFinding))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestToFindingDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := RawFinding{Detector: "unused", File: "./src/a.py", Name: "Foo", Tier: 2, Summary: "unused import"}
	f := raw.ToFinding(now)

	assert.Equal(t, "unused::src/a.py::Foo", f.ID)
	assert.Equal(t, "src/a.py", f.File)
	assert.Equal(t, StatusOpen, f.Status)
	assert.Equal(t, ConfidenceMedium, f.Confidence)
	assert.Equal(t, now, f.FirstSeen)
	assert.Equal(t, now, f.LastSeen)
	assert.NotNil(t, f.Detail)
	assert.Zero(t, f.ReopenCount)
}

func TestDetailCloneIsDeep(t *testing.T) {
	orig := Detail{
		"count":  3.0,
		"nested": map[string]any{"names": []any{"a", "b"}},
		"lines":  []int{1, 2},
	}
	clone := orig.Clone()

	orig["count"] = 9.0
	orig["nested"].(map[string]any)["names"].([]any)[0] = "z"
	orig["lines"].([]int)[0] = 42

	assert.Equal(t, 3.0, clone["count"])
	assert.Equal(t, "a", clone["nested"].(map[string]any)["names"].([]any)[0])
	assert.Equal(t, 1, clone["lines"].([]int)[0])
	assert.Nil(t, Detail(nil).Clone())
}

func TestDetailAccessors(t *testing.T) {
	d := Detail{"dimension": "naming_quality", "holistic": true, "loc_weight": 12.5, "n": 3}
	assert.Equal(t, "naming_quality", d.String("dimension"))
	assert.Equal(t, "", d.String("missing"))
	assert.True(t, d.Bool("holistic"))
	assert.False(t, d.Bool("dimension"))

	v, ok := d.Float("loc_weight")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	v, ok = d.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = d.Float("dimension")
	assert.False(t, ok)

	assert.Equal(t, []string{"dimension", "holistic", "loc_weight", "n"}, d.Keys())
	assert.Empty(t, Detail(nil).Keys())
}

func TestEnsureDefaults(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &State{
		Created:   created,
		ScanCount: -3,
		Findings: map[string]*Finding{
			"unused::a.py::x": {Status: "resolved"},
			"logs::b.py":      {ID: "logs::b.py", Detector: "logs", Tier: 2, Status: "bogus", ReopenCount: -1},
			"dead":            nil,
			"smells::c.py::y": {
				ID: "smells::c.py::y", Detector: "smells", Tier: 3,
				Status: StatusFixed, Suppressed: true,
			},
		},
	}

	EnsureDefaults(s)

	assert.Equal(t, CurrentVersion, s.Version)
	assert.Zero(t, s.ScanCount)
	assert.NotContains(t, s.Findings, "dead")
	assert.NotNil(t, s.Config.Ignore)
	assert.NotNil(t, s.Potentials)
	assert.NotNil(t, s.Assessments)

	legacy := s.Findings["unused::a.py::x"]
	assert.Equal(t, "unused::a.py::x", legacy.ID)
	assert.Equal(t, "unknown", legacy.Detector)
	assert.Equal(t, 3, legacy.Tier)
	assert.Equal(t, ConfidenceLow, legacy.Confidence)
	assert.Equal(t, StatusFixed, legacy.Status)
	assert.Equal(t, created, legacy.FirstSeen)
	assert.Equal(t, created, legacy.LastSeen)

	bogus := s.Findings["logs::b.py"]
	assert.Equal(t, StatusOpen, bogus.Status)
	assert.Zero(t, bogus.ReopenCount)

	assert.Equal(t, StatusOpen, s.Findings["smells::c.py::y"].Status)

	require.NoError(t, ValidateInvariants(s))
}

func TestValidateInvariants(t *testing.T) {
	valid := func() *Finding {
		return &Finding{ID: "unused::a.py::x", Detector: "unused", Tier: 2, Status: StatusOpen}
	}

	tests := []struct {
		name   string
		mutate func(f *Finding)
		field  string
	}{
		{"id mismatch", func(f *Finding) { f.ID = "other" }, "id"},
		{"bad status", func(f *Finding) { f.Status = "done" }, "status"},
		{"tier out of range", func(f *Finding) { f.Tier = 7 }, "tier"},
		{"negative reopen", func(f *Finding) { f.ReopenCount = -1 }, "reopen_count"},
		{"suppressed fixed", func(f *Finding) { f.Suppressed = true; f.Status = StatusFixed }, "status"},
		{"suppressed auto resolved", func(f *Finding) { f.Suppressed = true; f.Status = StatusAutoResolved }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)
			s := &State{Findings: map[string]*Finding{"unused::a.py::x": f}}

			err := ValidateInvariants(s)
			require.Error(t, err)
			var inv *InvariantError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tt.field, inv.Field)
			assert.Equal(t, "unused::a.py::x", inv.FindingID)
		})
	}

	t.Run("suppressed open is fine", func(t *testing.T) {
		f := valid()
		f.Suppressed = true
		s := &State{Findings: map[string]*Finding{f.ID: f}}
		assert.NoError(t, ValidateInvariants(s))
	})
}

func TestDimensionScoreLegacyJSON(t *testing.T) {
	var d DimensionScore
	require.NoError(t, json.Unmarshal([]byte(`{"score": 88.5, "strict": 80, "checks": 100, "tier": 3}`), &d))
	assert.Equal(t, 88.5, d.Score)
	assert.Equal(t, 80.0, d.StrictScore)
	assert.Equal(t, 80.0, d.VerifiedStrictScore)
	assert.Equal(t, 100, d.Checks)

	var modern DimensionScore
	require.NoError(t, json.Unmarshal([]byte(`{"score": 90, "strict_score": 85, "verified_strict_score": 70}`), &modern))
	assert.Equal(t, 85.0, modern.StrictScore)
	assert.Equal(t, 70.0, modern.VerifiedStrictScore)
}

func TestSubjectiveAssessmentAcceptsBareNumber(t *testing.T) {
	var m map[string]*SubjectiveAssessment
	require.NoError(t, json.Unmarshal([]byte(`{"naming_quality": 72, "logic_clarity": {"score": 64.5, "needs_review_refresh": true}}`), &m))
	assert.Equal(t, 72.0, m["naming_quality"].Score)
	assert.Equal(t, 64.5, m["logic_clarity"].Score)
	assert.True(t, m["logic_clarity"].NeedsReviewRefresh)
}

func TestStatusHelpers(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, Status("resolved").IsValid())
	assert.True(t, StatusFixed.IsPositiveSignal())
	assert.True(t, StatusAutoResolved.IsPositiveSignal())
	assert.True(t, StatusFalsePositive.IsPositiveSignal())
	assert.False(t, StatusWontfix.IsPositiveSignal())
	assert.False(t, StatusAutoResolved.IsManual())
	assert.True(t, StatusWontfix.IsManual())
	assert.Less(t, ConfidenceHigh.Rank(), ConfidenceLow.Rank())
}
