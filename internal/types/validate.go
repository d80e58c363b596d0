package types

import (
	"fmt"
	"sort"
	"time"
)

// InvariantError reports a state that violates the finding invariants.
// Callers detect it with errors.As.
type InvariantError struct {
	FindingID string
	Field     string
	Reason    string
}

func (e *InvariantError) Error() string {
	if e.FindingID == "" {
		return fmt.Sprintf("state invariant violated: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("state invariant violated for %s: %s: %s", e.FindingID, e.Field, e.Reason)
}

// EnsureDefaults normalizes a loaded or freshly created state in place.
// It fills missing collections, migrates legacy values and repairs
// fields that can be repaired without guessing.
func EnsureDefaults(s *State) {
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	if s.Created.IsZero() {
		s.Created = Now()
	}
	if s.ScanCount < 0 {
		s.ScanCount = 0
	}
	if s.Findings == nil {
		s.Findings = make(map[string]*Finding)
	}
	if s.Config.Ignore == nil {
		s.Config.Ignore = []string{}
	}
	if s.Potentials == nil {
		s.Potentials = make(map[string]map[string]int)
	}
	if s.DimensionScores == nil {
		s.DimensionScores = make(map[string]DimensionScore)
	}
	if s.Assessments == nil {
		s.Assessments = make(map[string]*SubjectiveAssessment)
	}
	for dim, a := range s.Assessments {
		if a == nil {
			delete(s.Assessments, dim)
		}
	}
	if s.ScanHistory == nil {
		s.ScanHistory = []ScanHistoryEntry{}
	}
	if s.Stats.ByTier == nil {
		s.Stats.ByTier = make(map[string]StatusCounts)
	}

	for key, f := range s.Findings {
		if f == nil {
			delete(s.Findings, key)
			continue
		}
		normalizeFinding(key, f, s.Created)
	}
}

func normalizeFinding(key string, f *Finding, created time.Time) {
	if f.ID == "" {
		f.ID = key
	}
	if f.Detector == "" {
		f.Detector = "unknown"
	}
	if f.Tier == 0 {
		f.Tier = 3
	}
	if f.Confidence == "" {
		f.Confidence = ConfidenceLow
	}
	switch {
	case f.Status == "resolved":
		f.Status = StatusFixed
	case !f.Status.IsValid():
		f.Status = StatusOpen
	}
	if f.Detail == nil {
		f.Detail = Detail{}
	}
	if f.FirstSeen.IsZero() {
		f.FirstSeen = created
	}
	if f.LastSeen.IsZero() {
		f.LastSeen = f.FirstSeen
	}
	if f.ReopenCount < 0 {
		f.ReopenCount = 0
	}
	if f.Suppressed && f.Status.IsPositiveSignal() {
		f.Status = StatusOpen
		f.ResolvedAt = nil
		f.ResolutionAttestation = nil
	}
}

// ValidateInvariants checks the invariants every mutation must preserve.
// Findings are checked in id order so the first reported error is stable.
func ValidateInvariants(s *State) error {
	if s.Findings == nil {
		return &InvariantError{Field: "findings", Reason: "must be a map"}
	}
	if s.ScanCount < 0 {
		return &InvariantError{Field: "scan_count", Reason: fmt.Sprintf("must be non-negative (got %d)", s.ScanCount)}
	}

	keys := make([]string, 0, len(s.Findings))
	for k := range s.Findings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f := s.Findings[key]
		if f == nil {
			return &InvariantError{FindingID: key, Field: "finding", Reason: "must not be null"}
		}
		if f.ID != key {
			return &InvariantError{FindingID: key, Field: "id", Reason: fmt.Sprintf("does not match map key (got %q)", f.ID)}
		}
		if !f.Status.IsValid() {
			return &InvariantError{FindingID: key, Field: "status", Reason: fmt.Sprintf("invalid status %q", f.Status)}
		}
		if f.Tier < 1 || f.Tier > 4 {
			return &InvariantError{FindingID: key, Field: "tier", Reason: fmt.Sprintf("must be between 1 and 4 (got %d)", f.Tier)}
		}
		if f.ReopenCount < 0 {
			return &InvariantError{FindingID: key, Field: "reopen_count", Reason: "must be non-negative"}
		}
		if f.Suppressed && f.Status.IsPositiveSignal() {
			return &InvariantError{FindingID: key, Field: "status", Reason: fmt.Sprintf("suppressed finding cannot be %s", f.Status)}
		}
	}
	return nil
}
