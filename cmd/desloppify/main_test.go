package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/archive"
	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/review"
	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// setupCLI points the package globals at a temp project.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	project = config.DefaultProject()
	project.Archive.Path = filepath.Join(dir, "history.db")
	statePath = filepath.Join(dir, "state.json")
	configPath = filepath.Join(dir, "config.yaml")
	engine = state.NewEngine(nil)
	return dir
}

func writeFindings(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunScanFromFile(t *testing.T) {
	dir := setupCLI(t)
	project.ZoneOverrides = map[string]string{"scripts/": "script"}
	ctx := context.Background()

	first := writeFindings(t, dir, "scan1.json", `{
		"findings": [
			{"detector": "unused", "file": "src/a.py", "name": "os", "tier": 1, "summary": "unused import os"},
			{"detector": "logs", "file": "scripts/run.py", "name": "print", "tier": 2, "summary": "print call"}
		],
		"potentials": {"unused": 20, "logs": 10}
	}`)
	s := loadState()
	diff, err := runScan(ctx, s, scanOptions{from: first, lang: "python"})
	require.NoError(t, err)
	assert.Equal(t, 2, diff.New)
	assert.Equal(t, "script", s.Findings["logs::scripts/run.py::print"].Zone)
	assert.Equal(t, "production", s.Findings["unused::src/a.py::os"].Zone)

	second := writeFindings(t, dir, "scan2.json", `{
		"findings": [{"detector": "logs", "file": "scripts/run.py", "name": "print", "tier": 2, "summary": "print call"}],
		"potentials": {"unused": 20, "logs": 10}
	}`)
	s = loadState()
	diff, err = runScan(ctx, s, scanOptions{from: second, lang: "python"})
	require.NoError(t, err)
	assert.Equal(t, 1, diff.AutoResolved)

	reloaded := loadState()
	assert.Equal(t, types.StatusAutoResolved, reloaded.Findings["unused::src/a.py::os"].Status)
	assert.Equal(t, 2, reloaded.ScanCount)

	a, err := archive.Open(project.Archive.Path)
	require.NoError(t, err)
	defer a.Close()
	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConfiguredTargetDrivesIntegrity(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		status types.IntegrityStatus
		reset  int
	}{
		{"scores on target are reset", 95, types.IntegrityPenalized, 3},
		{"scores off target pass", 80, types.IntegrityPass, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupCLI(t)
			project.Archive.Enabled = false
			project.TargetStrictScore = tt.target

			scan := writeFindings(t, dir, "scan.json", `{
				"findings": [{"detector": "unused", "file": "src/a.py", "name": "os", "tier": 1, "summary": "unused import os"}],
				"potentials": {"unused": 20}
			}`)
			s := loadState()
			_, err := runScan(context.Background(), s, scanOptions{from: scan, lang: "python"})
			require.NoError(t, err)

			s = loadState()
			_, err = review.ImportAssessments(engine, s, &review.Payload{Assessments: map[string]review.Score{
				"naming_quality": 95,
				"logic_clarity":  95,
				"type_safety":    95,
			}}, "manual")
			require.NoError(t, err)
			saveState(s)

			reloaded := loadState()
			require.NotNil(t, reloaded.Integrity)
			assert.Equal(t, tt.status, reloaded.Integrity.Status)
			require.NotNil(t, reloaded.Integrity.TargetScore)
			assert.Equal(t, tt.target, *reloaded.Integrity.TargetScore)
			assert.Len(t, reloaded.Integrity.ResetDimensions, tt.reset)
			assert.Equal(t, 95.0, reloaded.Assessments["naming_quality"].Score)
		})
	}
}

func TestRunScanArchiveDisabled(t *testing.T) {
	dir := setupCLI(t)
	project.Archive.Enabled = false
	path := writeFindings(t, dir, "scan.json", `[]`)

	_, err := runScan(context.Background(), loadState(), scanOptions{from: path})
	require.NoError(t, err)
	_, err = os.Stat(project.Archive.Path)
	assert.True(t, os.IsNotExist(err))

	entries, trend := historyFromArchive(context.Background(), 10)
	assert.Nil(t, entries)
	assert.Nil(t, trend)
}

func TestLoadStateAppliesProjectConfig(t *testing.T) {
	setupCLI(t)
	project.Ignore = []string{"vendor/**"}
	project.FindingNoiseBudget = 3

	s := loadState()
	assert.Equal(t, []string{"vendor/**"}, s.Config.Ignore)
	require.NotNil(t, s.Config.FindingNoiseBudget)
	assert.Equal(t, 3, *s.Config.FindingNoiseBudget)
}

func TestScoreBar(t *testing.T) {
	assert.Equal(t, 20, len([]rune(stripANSI(scoreBar(100)))))
	assert.Equal(t, strings.Repeat("█", 10)+strings.Repeat("░", 10), stripANSI(scoreBar(50)))
	assert.Equal(t, strings.Repeat("░", 20), stripANSI(scoreBar(0)))
}

func TestAddWatchRecursiveSkipsExcluded(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"src/pkg", "node_modules/react", ".desloppify"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, addWatchRecursive(w, root, []string{"node_modules/", ".desloppify/"}))
	watched := w.WatchList()
	assert.Contains(t, watched, filepath.Join(root, "src", "pkg"))
	assert.NotContains(t, watched, filepath.Join(root, "node_modules"))
	assert.NotContains(t, watched, filepath.Join(root, ".desloppify"))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
