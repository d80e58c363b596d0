package types

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidFinding is returned when detector output cannot be turned into a finding.
var ErrInvalidFinding = errors.New("invalid finding")

// Finding is one persisted instance of a detected issue.
type Finding struct {
	ID         string     `json:"id"`
	Detector   string     `json:"detector"`
	File       string     `json:"file"`
	Tier       int        `json:"tier"`
	Confidence Confidence `json:"confidence"`
	Summary    string     `json:"summary"`
	Detail     Detail     `json:"detail"`
	Status     Status     `json:"status"`
	Note       string     `json:"note,omitempty"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	// ReopenCount never decreases.
	ReopenCount int `json:"reopen_count"`

	Suppressed         bool       `json:"suppressed"`
	SuppressedAt       *time.Time `json:"suppressed_at,omitempty"`
	SuppressionPattern string     `json:"suppression_pattern,omitempty"`

	ResolutionAttestation *Attestation     `json:"resolution_attestation,omitempty"`
	WontfixScanCount      *int             `json:"wontfix_scan_count,omitempty"`
	WontfixSnapshot       *WontfixSnapshot `json:"wontfix_snapshot,omitempty"`

	Zone string `json:"zone,omitempty"`
	Lang string `json:"lang,omitempty"`
}

// Status represents where a finding is in its lifecycle
type Status string

const (
	StatusOpen          Status = "open"
	StatusFixed         Status = "fixed"
	StatusWontfix       Status = "wontfix"
	StatusFalsePositive Status = "false_positive"
	StatusAutoResolved  Status = "auto_resolved"
)

// AllStatuses lists every valid status in display order.
var AllStatuses = []Status{StatusOpen, StatusFixed, StatusAutoResolved, StatusWontfix, StatusFalsePositive}

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusFixed, StatusWontfix, StatusFalsePositive, StatusAutoResolved:
		return true
	}
	return false
}

// IsPositiveSignal reports whether the status credits the score as "no longer a problem".
// A suppressed finding must never carry one of these.
func (s Status) IsPositiveSignal() bool {
	switch s {
	case StatusFixed, StatusAutoResolved, StatusFalsePositive:
		return true
	}
	return false
}

// IsManual reports whether the status can be set through manual resolution.
func (s Status) IsManual() bool {
	switch s {
	case StatusFixed, StatusWontfix, StatusFalsePositive:
		return true
	}
	return false
}

// Confidence is how sure a detector is about a finding
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid checks if the confidence value is valid
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Rank orders confidences for sorting (high first). Unknown values sort last.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	}
	return 9
}

// AttestationKind records who vouched for a resolution
type AttestationKind string

const (
	AttestationManual       AttestationKind = "manual"
	AttestationScanVerified AttestationKind = "scan_verified"
)

// Attestation records why a resolution is trusted.
type Attestation struct {
	Kind         AttestationKind `json:"kind"`
	Text         string          `json:"text"`
	AttestedAt   time.Time       `json:"attested_at"`
	ScanVerified bool            `json:"scan_verified"`
}

// WontfixSnapshot captures a finding's shape at the moment it was marked wontfix,
// so later tooling can tell whether it drifted materially since the decision.
type WontfixSnapshot struct {
	CapturedAt time.Time  `json:"captured_at"`
	ScanCount  int        `json:"scan_count"`
	Tier       int        `json:"tier"`
	Confidence Confidence `json:"confidence"`
	Detail     Detail     `json:"detail"`
}

// RawFinding is one record of detector output, before it is merged into state.
type RawFinding struct {
	Detector   string     `json:"detector"`
	File       string     `json:"file"`
	Name       string     `json:"name,omitempty"`
	Tier       int        `json:"tier"`
	Confidence Confidence `json:"confidence,omitempty"`
	Summary    string     `json:"summary"`
	Detail     Detail     `json:"detail,omitempty"`
	Zone       string     `json:"zone,omitempty"`
	Lang       string     `json:"lang,omitempty"`
}

// Validate checks that detector output is well formed.
// An empty confidence is accepted and treated as medium.
func (r *RawFinding) Validate() error {
	if strings.TrimSpace(r.Detector) == "" {
		return fmt.Errorf("%w: detector is required", ErrInvalidFinding)
	}
	if strings.Contains(r.Detector, "::") {
		return fmt.Errorf("%w: detector %q must not contain '::'", ErrInvalidFinding, r.Detector)
	}
	if strings.TrimSpace(r.File) == "" {
		return fmt.Errorf("%w: file is required (detector %s)", ErrInvalidFinding, r.Detector)
	}
	if r.Tier < 1 || r.Tier > 4 {
		return fmt.Errorf("%w: tier must be between 1 and 4 (got %d) for %s", ErrInvalidFinding, r.Tier, r.ID())
	}
	if r.Confidence != "" && !r.Confidence.IsValid() {
		return fmt.Errorf("%w: invalid confidence %q for %s", ErrInvalidFinding, r.Confidence, r.ID())
	}
	return nil
}

// ID returns the stable finding ID for this record.
func (r *RawFinding) ID() string {
	return FindingID(r.Detector, r.File, r.Name)
}

// ToFinding converts detector output into a fresh open finding.
func (r *RawFinding) ToFinding(now time.Time) *Finding {
	confidence := r.Confidence
	if confidence == "" {
		confidence = ConfidenceMedium
	}
	detail := r.Detail.Clone()
	if detail == nil {
		detail = Detail{}
	}
	return &Finding{
		ID:         r.ID(),
		Detector:   r.Detector,
		File:       NormalizePath(r.File),
		Tier:       r.Tier,
		Confidence: confidence,
		Summary:    r.Summary,
		Detail:     detail,
		Status:     StatusOpen,
		FirstSeen:  now,
		LastSeen:   now,
		Zone:       r.Zone,
		Lang:       r.Lang,
	}
}

// MakeFinding creates a normalized open finding with a stable ID.
func MakeFinding(detector, file, name string, tier int, confidence Confidence, summary string, detail Detail) *Finding {
	raw := RawFinding{
		Detector:   detector,
		File:       file,
		Name:       name,
		Tier:       tier,
		Confidence: confidence,
		Summary:    summary,
		Detail:     detail,
	}
	return raw.ToFinding(Now())
}

// FindingID derives the reconciliation key: "detector::file::name", or
// "detector::file" when name is empty.
func FindingID(detector, file, name string) string {
	file = NormalizePath(file)
	if name == "" {
		return detector + "::" + file
	}
	return detector + "::" + file + "::" + name
}

// NormalizePath returns a slash-separated, cleaned, project-relative path.
// "." is kept as the sentinel for codebase-wide findings.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// RelPath makes file relative to root when it lives under it, then normalizes it.
func RelPath(root, file string) string {
	if root != "" && filepath.IsAbs(file) {
		if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return NormalizePath(filepath.ToSlash(file))
}

// Now returns the current UTC time at second precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
