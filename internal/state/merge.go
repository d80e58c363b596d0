package state

import (
	"fmt"
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// MergeOptions configures one scan merge.
type MergeOptions struct {
	Lang         string
	ScanPath     string
	ForceResolve bool
	Exclude      []string
	// Potentials are this scan's checked-item counts per detector. When
	// non-nil, its keys are the set of detectors that actually ran.
	Potentials map[string]int
	// MergePotentials merges into the stored potentials for Lang instead of
	// replacing them.
	MergePotentials bool
	CodebaseMetrics map[string]any
	// SkipSlow records that slow detectors were skipped (a "fast" scan).
	SkipSlow bool
	// Ignore overrides the state's configured ignore patterns when non-nil.
	Ignore          []string
	IntegrityTarget *float64
}

// ScanDiff summarizes what a merge changed.
type ScanDiff struct {
	ScanID            string           `json:"scan_id"`
	New               int              `json:"new"`
	AutoResolved      int              `json:"auto_resolved"`
	Reopened          int              `json:"reopened"`
	TotalCurrent      int              `json:"total_current"`
	CurrentIDs        []string         `json:"current_ids,omitempty"`
	SuspectDetectors  []string         `json:"suspect_detectors"`
	ChronicReopeners  []*types.Finding `json:"chronic_reopeners"`
	SkippedOtherLang  int              `json:"skipped_other_lang"`
	SkippedOutOfScope int              `json:"skipped_out_of_scope"`
	Ignored           int              `json:"ignored"`
	IgnorePatterns    int              `json:"ignore_patterns"`
	RawFindings       int              `json:"raw_findings"`
	SuppressedPct     float64          `json:"suppressed_pct"`
}

// MergeScan reconciles a fresh scan's raw findings against persisted state.
//
// New findings are inserted open (or suppressed when an ignore pattern
// matches), reappearing resolved findings are reopened, and previously
// tracked findings that vanished are auto-resolved unless their detector is
// suspect, they belong to another language, or they fall outside the scan
// path or inside an exclusion. Stats and scores are recomputed, a history
// entry is appended and invariants are validated before returning.
//
// Raw findings are validated first; on error the state is untouched.
func (e *Engine) MergeScan(s *types.State, raw []types.RawFinding, opts MergeOptions) (*ScanDiff, error) {
	for i := range raw {
		if err := raw[i].Validate(); err != nil {
			return nil, fmt.Errorf("scan finding %d: %w", i, err)
		}
	}

	types.EnsureDefaults(s)
	now := e.now()

	recordScanMetadata(s, now, opts)
	mergeScanInputs(s, opts)

	patterns := opts.Ignore
	if patterns == nil {
		patterns = s.Config.Ignore
	}

	up := upsertFindings(s.Findings, raw, patterns, now, opts.Lang)
	suppressedPct := suppressionPct(len(raw), up.ignored)

	var ran map[string]bool
	if opts.Potentials != nil {
		ran = make(map[string]bool, len(opts.Potentials))
		for det := range opts.Potentials {
			ran[det] = true
		}
	}
	suspects := findSuspectDetectors(s.Findings, up.byDetector, opts.ForceResolve, ran)
	ar := autoResolveDisappeared(s.Findings, up.currentIDs, suspects, now, opts)

	e.Recompute(s, opts.ScanPath, integrityTarget(s, opts.IntegrityTarget))

	scanID := e.newID()
	e.appendScanHistory(s, types.ScanHistoryEntry{
		ScanID:         scanID,
		Timestamp:      now,
		Lang:           opts.Lang,
		DiffNew:        up.newCount,
		DiffResolved:   ar.resolved,
		Ignored:        up.ignored,
		RawFindings:    len(raw),
		SuppressedPct:  suppressedPct,
		IgnorePatterns: len(patterns),
	})

	if err := types.ValidateInvariants(s); err != nil {
		return nil, err
	}

	diff := &ScanDiff{
		ScanID:            scanID,
		New:               up.newCount,
		AutoResolved:      ar.resolved,
		Reopened:          up.reopened,
		TotalCurrent:      len(up.currentIDs),
		CurrentIDs:        sortedKeys(up.currentIDs),
		SuspectDetectors:  sortedKeys(suspects),
		ChronicReopeners:  ChronicReopeners(s),
		SkippedOtherLang:  ar.skippedOtherLang,
		SkippedOutOfScope: ar.skippedOutOfScope,
		Ignored:           up.ignored,
		IgnorePatterns:    len(patterns),
		RawFindings:       len(raw),
		SuppressedPct:     suppressedPct,
	}
	return diff, nil
}

// ChronicReopeners returns open findings that have been reopened at least twice.
func ChronicReopeners(s *types.State) []*types.Finding {
	out := []*types.Finding{}
	for _, f := range s.Findings {
		if f.ReopenCount >= 2 && f.Status == types.StatusOpen {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
