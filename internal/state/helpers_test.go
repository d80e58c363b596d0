package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(nil)
	clock := testNow
	e.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return e
}

func raw(detector, file, name string) types.RawFinding {
	return types.RawFinding{
		Detector:   detector,
		File:       file,
		Name:       name,
		Tier:       3,
		Confidence: types.ConfidenceHigh,
		Summary:    detector + " in " + file,
	}
}

func addFinding(s *types.State, detector, file, name string, status types.Status) *types.Finding {
	f := types.MakeFinding(detector, file, name, 3, types.ConfidenceHigh, detector+" in "+file, nil)
	f.Status = status
	f.FirstSeen = testNow
	f.LastSeen = testNow
	if status != types.StatusOpen {
		at := testNow
		f.ResolvedAt = &at
	}
	s.Findings[f.ID] = f
	return f
}

func mustMerge(t *testing.T, e *Engine, s *types.State, findings []types.RawFinding, opts MergeOptions) *ScanDiff {
	t.Helper()
	diff, err := e.MergeScan(s, findings, opts)
	require.NoError(t, err)
	return diff
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
