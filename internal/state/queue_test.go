package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

func TestBuildQueue(t *testing.T) {
	s := types.NewState()
	critical := addFinding(s, "security", "src/auth.py", "token", types.StatusOpen)
	critical.Tier = 1
	addFinding(s, "unused", "src/a.py", "A", types.StatusOpen)
	addFinding(s, "unused", "src/b.py", "B", types.StatusOpen)
	addFinding(s, "unused", "lib/c.py", "C", types.StatusOpen)
	addFinding(s, "unused", "src/d.py", "D", types.StatusFixed)
	chronic := addFinding(s, "logs", "src/e.py", "E", types.StatusOpen)
	chronic.ReopenCount = 2
	muted := addFinding(s, "logs", "src/f.py", "F", types.StatusOpen)
	muted.Suppressed = true

	t.Run("defaults to open and unsuppressed", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{})
		assert.Equal(t, 5, q.Total)
		require.Len(t, q.Items, 5)
		assert.Equal(t, critical.ID, q.Items[0].ID)
		for _, f := range q.Items {
			assert.False(t, f.Suppressed)
			assert.Equal(t, types.StatusOpen, f.Status)
		}
	})

	t.Run("path scoped", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{ScanPath: "lib"})
		require.Len(t, q.Items, 1)
		assert.Equal(t, "unused::lib/c.py::C", q.Items[0].ID)
	})

	t.Run("chronic only", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{Chronic: true})
		require.Len(t, q.Items, 1)
		assert.Equal(t, chronic.ID, q.Items[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{Status: "fixed"})
		require.Len(t, q.Items, 1)
		assert.Equal(t, "unused::src/d.py::D", q.Items[0].ID)
		assert.Len(t, BuildQueue(s, QueueOptions{Status: StatusAll}).Items, 6)
	})

	t.Run("pattern", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{Pattern: "unused"})
		assert.Len(t, q.Items, 3)
	})

	t.Run("budget and count", func(t *testing.T) {
		q := BuildQueue(s, QueueOptions{PerDetector: 1})
		assert.Len(t, q.Items, 3)
		assert.Equal(t, []HiddenCount{{Detector: "unused", Count: 2}}, q.Hidden)
		assert.Equal(t, 2, q.HiddenTotal())

		q = BuildQueue(s, QueueOptions{Count: 2})
		assert.Len(t, q.Items, 2)
		assert.Equal(t, critical.ID, q.Items[0].ID)
	})
}

func TestComputeSuppressionMetrics(t *testing.T) {
	s := types.NewState()
	assert.Equal(t, SuppressionMetrics{}, ComputeSuppressionMetrics(s, 5))

	s.ScanHistory = []types.ScanHistoryEntry{
		{Ignored: 10, RawFindings: 10, SuppressedPct: 100, IgnorePatterns: 1},
		{Ignored: 1, RawFindings: 4, SuppressedPct: 25, IgnorePatterns: 2},
		{Ignored: 2, RawFindings: 6, SuppressedPct: 33.3333, IgnorePatterns: 3},
	}

	m := ComputeSuppressionMetrics(s, 2)
	assert.Equal(t, SuppressionMetrics{
		LastIgnored:         2,
		LastRawFindings:     6,
		LastSuppressedPct:   33.3,
		LastIgnorePatterns:  3,
		RecentScans:         2,
		RecentIgnored:       3,
		RecentRawFindings:   10,
		RecentSuppressedPct: 30,
	}, m)

	all := ComputeSuppressionMetrics(s, 0)
	assert.Equal(t, 1, all.RecentScans)
}
