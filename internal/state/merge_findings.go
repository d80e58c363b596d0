package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

const (
	noteSuppressedUnresolved = "Suppressed by ignore pattern — remains unresolved for score integrity"
	noteDisappeared          = "Disappeared from scan — likely fixed"
	noteWontfixDisappeared   = "Fixed despite wontfix — disappeared from scan (was wontfix)"
	attestDisappeared        = "Disappeared from detector output"

	// reviewDetector findings only enter through review import.
	reviewDetector = "review"

	// suspectDropThreshold is how many open findings a detector must have had
	// for a drop to zero to look like a malfunction.
	suspectDropThreshold = 3
)

type upsertResult struct {
	currentIDs map[string]bool
	byDetector map[string]int
	newCount   int
	reopened   int
	ignored    int
}

func suppress(f *types.Finding, pattern string, now time.Time) {
	f.Suppressed = true
	f.SuppressedAt = &now
	f.SuppressionPattern = pattern
	if f.Status.IsPositiveSignal() {
		f.Status = types.StatusOpen
		f.ResolvedAt = nil
		f.ResolutionAttestation = nil
		f.Note = noteSuppressedUnresolved
	}
}

func unsuppress(f *types.Finding) {
	f.Suppressed = false
	f.SuppressedAt = nil
	f.SuppressionPattern = ""
}

func upsertFindings(existing map[string]*types.Finding, raw []types.RawFinding, ignore []string, now time.Time, lang string) upsertResult {
	res := upsertResult{
		currentIDs: make(map[string]bool, len(raw)),
		byDetector: make(map[string]int),
	}

	for i := range raw {
		r := raw[i]
		if lang != "" {
			r.Lang = lang
		}
		incoming := r.ToFinding(now)
		id := incoming.ID

		res.currentIDs[id] = true
		res.byDetector[incoming.Detector]++
		matched := MatchIgnorePattern(id, incoming.File, ignore)
		if matched != "" {
			res.ignored++
		}

		prev, ok := existing[id]
		if !ok {
			existing[id] = incoming
			if matched != "" {
				suppress(incoming, matched, now)
				continue
			}
			res.newCount++
			continue
		}

		prev.LastSeen = now
		prev.Tier = incoming.Tier
		prev.Confidence = incoming.Confidence
		prev.Summary = incoming.Summary
		prev.Detail = incoming.Detail
		if incoming.Zone != "" {
			prev.Zone = incoming.Zone
		}
		if lang != "" && prev.Lang == "" {
			prev.Lang = lang
		}

		if matched != "" {
			suppress(prev, matched, now)
			continue
		}
		unsuppress(prev)

		if prev.Status == types.StatusFixed || prev.Status == types.StatusAutoResolved {
			was := prev.Status
			prev.ReopenCount++
			prev.ResolutionAttestation = nil
			prev.Status = types.StatusOpen
			prev.ResolvedAt = nil
			prev.Note = fmt.Sprintf("Reopened (×%d) — reappeared in scan (was %s)", prev.ReopenCount, was)
			res.reopened++
		}
	}
	return res
}

// findSuspectDetectors returns detectors whose missing findings must not be
// auto-resolved because the detector probably did not really run.
//
// Only detectors with open findings are considered. review is always
// suspect. A detector that produced anything this scan is trusted. When the
// ran-set is known, membership alone decides; otherwise a drop to zero from
// suspectDropThreshold or more open findings is suspect.
func findSuspectDetectors(existing map[string]*types.Finding, current map[string]int, force bool, ran map[string]bool) map[string]bool {
	suspects := make(map[string]bool)
	if force {
		return suspects
	}

	openByDetector := make(map[string]int)
	for _, f := range existing {
		if f.Status == types.StatusOpen {
			openByDetector[f.Detector]++
		}
	}

	for det, prevOpen := range openByDetector {
		switch {
		case det == reviewDetector:
			suspects[det] = true
		case current[det] > 0:
		case ran != nil:
			if !ran[det] {
				suspects[det] = true
			}
		case prevOpen >= suspectDropThreshold:
			suspects[det] = true
		}
	}
	return suspects
}

type autoResolveResult struct {
	resolved          int
	skippedOtherLang  int
	skippedOutOfScope int
}

func autoResolveDisappeared(existing map[string]*types.Finding, current, suspects map[string]bool, now time.Time, opts MergeOptions) autoResolveResult {
	var res autoResolveResult

	for id, f := range existing {
		if current[id] {
			continue
		}
		switch f.Status {
		case types.StatusOpen, types.StatusWontfix, types.StatusFixed, types.StatusFalsePositive:
		default:
			continue
		}

		if opts.Lang != "" && f.Lang != "" && f.Lang != opts.Lang {
			res.skippedOtherLang++
			continue
		}
		if opts.ScanPath != "" && opts.ScanPath != "." &&
			!strings.HasPrefix(f.File, strings.TrimRight(opts.ScanPath, "/")+"/") && f.File != opts.ScanPath {
			res.skippedOutOfScope++
			continue
		}
		if matchesAnyExclusion(f.File, opts.Exclude) {
			continue
		}
		if suspects[f.Detector] {
			continue
		}

		was := f.Status
		f.Status = types.StatusAutoResolved
		f.ResolvedAt = &now
		unsuppress(f)
		f.ResolutionAttestation = &types.Attestation{
			Kind:         types.AttestationScanVerified,
			Text:         attestDisappeared,
			AttestedAt:   now,
			ScanVerified: true,
		}
		if was == types.StatusWontfix {
			f.Note = noteWontfixDisappeared
		} else {
			f.Note = noteDisappeared
		}
		res.resolved++
	}
	return res
}
