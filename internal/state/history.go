package state

import (
	"math"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

func recordScanMetadata(s *types.State, now time.Time, opts MergeOptions) {
	s.LastScan = &now
	s.ScanCount++
	s.ScanPath = opts.ScanPath
	if opts.Lang != "" {
		if s.ScanCompleteness == nil {
			s.ScanCompleteness = make(map[string]string)
		}
		if opts.SkipSlow {
			s.ScanCompleteness[opts.Lang] = "fast"
		} else {
			s.ScanCompleteness[opts.Lang] = "full"
		}
	}
}

func mergeScanInputs(s *types.State, opts MergeOptions) {
	if opts.Lang == "" {
		return
	}
	if opts.Potentials != nil {
		next := make(map[string]int, len(opts.Potentials))
		if existing, ok := s.Potentials[opts.Lang]; ok && opts.MergePotentials {
			for det, n := range existing {
				next[det] = n
			}
		}
		for det, n := range opts.Potentials {
			next[det] = n
		}
		s.Potentials[opts.Lang] = next
	}
	if opts.CodebaseMetrics != nil {
		if s.CodebaseMetrics == nil {
			s.CodebaseMetrics = make(map[string]map[string]any)
		}
		metrics := make(map[string]any, len(opts.CodebaseMetrics))
		for k, v := range opts.CodebaseMetrics {
			metrics[k] = v
		}
		s.CodebaseMetrics[opts.Lang] = metrics
	}
}

func suppressionPct(raw, ignored int) float64 {
	if raw == 0 {
		return 0
	}
	return math.Round(float64(ignored)/float64(raw)*1000) / 10
}

// appendScanHistory fills the score fields of entry from s and appends it,
// keeping only the newest HistoryLimit entries.
func (e *Engine) appendScanHistory(s *types.State, entry types.ScanHistoryEntry) {
	entry.OverallScore = s.OverallScore
	entry.ObjectiveScore = s.ObjectiveScore
	entry.StrictScore = s.StrictScore
	entry.VerifiedStrictScore = s.VerifiedStrictScore
	entry.Open = s.Stats.Open
	if s.Integrity != nil {
		entry.Integrity = &types.HistoryIntegrity{
			Status:       s.Integrity.Status,
			MatchedCount: s.Integrity.MatchedCount,
			ResetCount:   len(s.Integrity.ResetDimensions),
			TargetScore:  s.Integrity.TargetScore,
		}
	}
	if len(s.DimensionScores) > 0 {
		entry.DimensionScores = make(map[string]types.HistoryDimension, len(s.DimensionScores))
		for name, d := range s.DimensionScores {
			entry.DimensionScores[name] = types.HistoryDimension{Score: d.Score, Strict: d.StrictScore}
		}
	}

	s.ScanHistory = append(s.ScanHistory, entry)
	if limit := e.historyLimit(); len(s.ScanHistory) > limit {
		s.ScanHistory = append([]types.ScanHistoryEntry(nil), s.ScanHistory[len(s.ScanHistory)-limit:]...)
	}
}

// LastScanEntry returns the newest scan-history entry, if any.
func LastScanEntry(s *types.State) (types.ScanHistoryEntry, bool) {
	if len(s.ScanHistory) == 0 {
		return types.ScanHistoryEntry{}, false
	}
	return s.ScanHistory[len(s.ScanHistory)-1], true
}

// SuppressionMetrics summarizes ignore suppression over recent scans.
type SuppressionMetrics struct {
	LastIgnored         int     `json:"last_ignored"`
	LastRawFindings     int     `json:"last_raw_findings"`
	LastSuppressedPct   float64 `json:"last_suppressed_pct"`
	LastIgnorePatterns  int     `json:"last_ignore_patterns"`
	RecentScans         int     `json:"recent_scans"`
	RecentIgnored       int     `json:"recent_ignored"`
	RecentRawFindings   int     `json:"recent_raw_findings"`
	RecentSuppressedPct float64 `json:"recent_suppressed_pct"`
}

// ComputeSuppressionMetrics reads the last window scans of history.
// It never mutates state.
func ComputeSuppressionMetrics(s *types.State, window int) SuppressionMetrics {
	if len(s.ScanHistory) == 0 {
		return SuppressionMetrics{}
	}
	if window < 1 {
		window = 1
	}
	recent := s.ScanHistory
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	last := recent[len(recent)-1]

	m := SuppressionMetrics{
		LastIgnored:        last.Ignored,
		LastRawFindings:    last.RawFindings,
		LastSuppressedPct:  math.Round(last.SuppressedPct*10) / 10,
		LastIgnorePatterns: last.IgnorePatterns,
		RecentScans:        len(recent),
	}
	for _, entry := range recent {
		m.RecentIgnored += entry.Ignored
		m.RecentRawFindings += entry.RawFindings
	}
	m.RecentSuppressedPct = suppressionPct(m.RecentRawFindings, m.RecentIgnored)
	return m
}
