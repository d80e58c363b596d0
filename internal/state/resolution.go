package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/scoring"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var (
	// ErrInvalidStatus is returned for a resolution status other than fixed, wontfix or false_positive.
	ErrInvalidStatus = errors.New("invalid resolution status")
	// ErrNoteRequired is returned when wontfix is requested without a note.
	ErrNoteRequired = errors.New("wontfix requires a note")
	// ErrAttestationRequired is returned when a manual resolution has no attestation.
	ErrAttestationRequired = errors.New("resolution requires an attestation")
)

// ValidateResolution checks resolve input before anything is touched.
func ValidateResolution(status types.Status, note, attestation string) error {
	if !status.IsManual() {
		return fmt.Errorf("%w: %q (want fixed, wontfix or false_positive)", ErrInvalidStatus, status)
	}
	if status == types.StatusWontfix && strings.TrimSpace(note) == "" {
		return ErrNoteRequired
	}
	if strings.TrimSpace(attestation) == "" {
		return ErrAttestationRequired
	}
	return nil
}

// ResolveFindings applies a manual resolution to every open, non-suppressed
// finding matching pattern and returns the resolved IDs. Matching nothing is
// not an error.
//
// Resolving review findings marks their dimension's subjective assessment as
// needing a refresh; the assessment score itself is kept.
func (e *Engine) ResolveFindings(s *types.State, pattern string, status types.Status, note, attestation string) ([]string, error) {
	if err := ValidateResolution(status, note, attestation); err != nil {
		return nil, err
	}
	types.EnsureDefaults(s)
	now := e.now()

	matches := MatchFindings(s, pattern, string(types.StatusOpen))
	resolved := make([]string, 0, len(matches))
	for _, f := range matches {
		if status == types.StatusWontfix {
			scanCount := s.ScanCount
			f.WontfixScanCount = &scanCount
			f.WontfixSnapshot = &types.WontfixSnapshot{
				CapturedAt: now,
				ScanCount:  scanCount,
				Tier:       f.Tier,
				Confidence: f.Confidence,
				Detail:     f.Detail.Clone(),
			}
		}
		f.Status = status
		f.Note = note
		f.ResolvedAt = &now
		unsuppress(f)
		f.ResolutionAttestation = &types.Attestation{
			Kind:         types.AttestationManual,
			Text:         attestation,
			AttestedAt:   now,
			ScanVerified: false,
		}
		resolved = append(resolved, f.ID)
	}

	markStaleAssessments(s, matches, status, now)

	e.Recompute(s, s.ScanPath, integrityTarget(s, nil))
	if err := types.ValidateInvariants(s); err != nil {
		return nil, err
	}
	return resolved, nil
}

func markStaleAssessments(s *types.State, resolved []*types.Finding, status types.Status, now time.Time) {
	if len(s.Assessments) == 0 {
		return
	}
	reason := "review_finding_" + string(status)
	for _, f := range resolved {
		if f.Detector != reviewDetector {
			continue
		}
		dim := strings.TrimSpace(f.Detail.String("dimension"))
		if dim == "" {
			continue
		}
		a, ok := s.Assessments[dim]
		if !ok {
			a, ok = s.Assessments[scoring.NormalizeDimensionKey(dim)]
		}
		if !ok {
			continue
		}
		a.NeedsReviewRefresh = true
		a.RefreshReason = reason
		stale := now
		a.StaleSince = &stale
	}
}

// AddIgnore appends pattern to the ignore list (once) and suppresses every
// finding it matches. It returns the number of findings matched.
//
// Globs use fnmatch syntax (*, ?, [seq], [!seq]) with * spanning "/".
// Braces have no alternation meaning and match literally.
func (e *Engine) AddIgnore(s *types.State, pattern string) (int, error) {
	types.EnsureDefaults(s)
	exists := false
	for _, p := range s.Config.Ignore {
		if p == pattern {
			exists = true
			break
		}
	}
	if !exists {
		s.Config.Ignore = append(s.Config.Ignore, pattern)
	}
	return e.RemoveIgnoredFindings(s, pattern)
}

// RemoveIgnoredFindings suppresses findings matching one ignore pattern.
// Resolved findings it touches are forced back to open so an ignore can
// never keep crediting the score.
func (e *Engine) RemoveIgnoredFindings(s *types.State, pattern string) (int, error) {
	types.EnsureDefaults(s)
	now := e.now()
	patterns := []string{pattern}
	count := 0
	for id, f := range s.Findings {
		if !IsIgnored(id, f.File, patterns) {
			continue
		}
		suppress(f, pattern, now)
		count++
	}
	e.Recompute(s, s.ScanPath, integrityTarget(s, nil))
	if err := types.ValidateInvariants(s); err != nil {
		return 0, err
	}
	return count, nil
}

// integrityTarget picks the explicit target, then the configured
// target_strict_score, then the last audit's target.
func integrityTarget(s *types.State, explicit *float64) *float64 {
	if explicit != nil {
		t := clampScore(*explicit)
		return &t
	}
	if s.Config.TargetStrictScore != nil {
		t := clampScore(*s.Config.TargetStrictScore)
		return &t
	}
	if s.Integrity != nil && s.Integrity.TargetScore != nil {
		t := clampScore(*s.Integrity.TargetScore)
		return &t
	}
	return nil
}
