package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/types"
	"github.com/xyleth/desloppify-sub004/internal/version"
)

func populatedState(t *testing.T, e *Engine) *types.State {
	t.Helper()
	s := types.NewState()
	mustMerge(t, e, s, []types.RawFinding{
		raw("unused", "src/a.py", "Foo"),
		raw("smells", "src/b.py", "long_method"),
	}, MergeOptions{Lang: "python", Potentials: map[string]int{"unused": 10, "smells": 10}})
	_, err := e.ResolveFindings(s, "smells", types.StatusWontfix, "kept on purpose", "reviewed")
	require.NoError(t, err)
	return s
}

func findingsJSON(t *testing.T, s *types.State) string {
	t.Helper()
	data, err := json.Marshal(s.Findings)
	require.NoError(t, err)
	return string(data)
}

func TestLoadState_Missing(t *testing.T) {
	res, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.Equal(t, LoadFresh, res.Kind)
	assert.Empty(t, res.Warning)
	assert.Empty(t, res.State.Findings)
	assert.Equal(t, types.CurrentVersion, res.State.Version)
}

func TestSaveState_RoundTrip(t *testing.T) {
	e := newTestEngine()
	path := filepath.Join(t.TempDir(), ".desloppify", "state.json")
	s := populatedState(t, e)

	require.NoError(t, e.SaveState(s, path, nil))
	first, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, first.Kind)

	require.NoError(t, e.SaveState(first.State, path, nil))
	second, err := LoadState(path)
	require.NoError(t, err)

	assert.JSONEq(t, findingsJSON(t, s), findingsJSON(t, second.State))
	assert.Equal(t, s.ScanCount, second.State.ScanCount)
	assert.Equal(t, s.Config.Ignore, second.State.Config.Ignore)
	assert.Equal(t, s.Potentials, second.State.Potentials)
	assert.Len(t, second.State.ScanHistory, len(s.ScanHistory))
	assert.Equal(t, s.StrictScore, second.State.StrictScore)
	assert.Equal(t, s.Stats, second.State.Stats)

	_, err = os.Stat(BackupPath(path))
	assert.NoError(t, err, "second save must leave a backup")
}

func TestLoadState_CorruptedWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	garbage := []byte("{not json at all")
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	res, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, LoadFresh, res.Kind)
	assert.Contains(t, res.Warning, "corrupted")
	assert.Empty(t, res.State.Findings)

	preserved, err := os.ReadFile(CorruptedPath(path))
	require.NoError(t, err)
	assert.Equal(t, garbage, preserved)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadState_RecoversFromBackup(t *testing.T) {
	e := newTestEngine()
	path := filepath.Join(t.TempDir(), "state.json")
	s := populatedState(t, e)
	require.NoError(t, e.SaveState(s, path, nil))
	require.NoError(t, e.SaveState(s, path, nil))

	require.NoError(t, os.WriteFile(path, []byte("\x00\x01garbage"), 0o644))

	res, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, LoadRecoveredFromBackup, res.Kind)
	assert.Contains(t, res.Warning, "recovered from backup")
	assert.Len(t, res.State.Findings, 2)
	_, err = os.Stat(CorruptedPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadState_NewerVersionWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "findings": {}}`), 0o644))

	res, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, res.Kind)
	assert.Contains(t, res.Warning, "newer")
}

func TestSaveState_KeepsNewerVersionStamps(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		wantVersion int
		wantTool    string
	}{
		{"newer schema", `{"version": 99, "tool_version": "v0.0.1", "findings": {}}`, 99, version.Version},
		{"newer tool", `{"version": 1, "tool_version": "v99.0.0", "findings": {}}`, types.CurrentVersion, "v99.0.0"},
		{"older file", `{"version": 0, "tool_version": "v0.0.1", "findings": {}}`, types.CurrentVersion, version.Version},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))

			res, err := LoadState(path)
			require.NoError(t, err)
			require.NoError(t, e.SaveState(res.State, path, nil))

			saved, err := LoadState(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, saved.State.Version)
			assert.Equal(t, tt.wantTool, saved.State.ToolVersion)
		})
	}
}

func TestLoadState_NormalizesLegacyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{
		"version": 1,
		"findings": {
			"unused::a.py::X": {"detector": "unused", "file": "a.py", "tier": 2, "status": "resolved"},
			"logs::b.py": {"file": "b.py", "status": "weird"}
		},
		"subjective_assessments": {"naming_quality": 81.5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	res, err := LoadState(path)
	require.NoError(t, err)

	s := res.State
	fixed := s.Findings["unused::a.py::X"]
	require.NotNil(t, fixed)
	assert.Equal(t, "unused::a.py::X", fixed.ID)
	assert.Equal(t, types.StatusFixed, fixed.Status)

	other := s.Findings["logs::b.py"]
	require.NotNil(t, other)
	assert.Equal(t, types.StatusOpen, other.Status)
	assert.Equal(t, 3, other.Tier)
	assert.Equal(t, types.ConfidenceLow, other.Confidence)
	assert.Equal(t, "unknown", other.Detector)

	require.Contains(t, s.Assessments, "naming_quality")
	assert.Equal(t, 81.5, s.Assessments["naming_quality"].Score)
}

func TestLoadState_InvariantViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	bad := `{"findings": {"unused::a.py": {"id": "unused::a.py", "file": "a.py", "tier": 7, "status": "open"}}}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadState(path)
	require.Error(t, err)
	var invErr *types.InvariantError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "tier", invErr.Field)
}

func TestSaveState_UsesStoredIntegrityTarget(t *testing.T) {
	e := newTestEngine()
	path := filepath.Join(t.TempDir(), "state.json")
	s := types.NewState()
	for _, dim := range []string{"naming_quality", "error_consistency"} {
		s.Assessments[dim] = &types.SubjectiveAssessment{Score: 95}
	}
	mustMerge(t, e, s, nil, MergeOptions{
		Lang:            "python",
		Potentials:      map[string]int{"unused": 10},
		IntegrityTarget: floatPtr(95),
	})
	require.Equal(t, types.IntegrityPenalized, s.Integrity.Status)

	require.NoError(t, e.SaveState(s, path, nil))
	assert.Equal(t, types.IntegrityPenalized, s.Integrity.Status)
	require.NotNil(t, s.Integrity.TargetScore)
	assert.Equal(t, 95.0, *s.Integrity.TargetScore)

	require.NoError(t, e.SaveState(s, path, floatPtr(150)))
	assert.Equal(t, 100.0, *s.Integrity.TargetScore)
	assert.Equal(t, types.IntegrityPass, s.Integrity.Status)
}
