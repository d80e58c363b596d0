package types

import (
	"encoding/json"
	"time"
)

// CurrentVersion is the state file schema version written by this build.
const CurrentVersion = 1

// State is the persisted root object.
type State struct {
	Version     int        `json:"version"`
	ToolVersion string     `json:"tool_version,omitempty"`
	Created     time.Time  `json:"created"`
	LastScan    *time.Time `json:"last_scan,omitempty"`
	ScanCount   int        `json:"scan_count"`
	ScanPath    string     `json:"scan_path,omitempty"`

	OverallScore        float64 `json:"overall_score"`
	ObjectiveScore      float64 `json:"objective_score"`
	StrictScore         float64 `json:"strict_score"`
	VerifiedStrictScore float64 `json:"verified_strict_score"`

	Stats    Stats               `json:"stats"`
	Findings map[string]*Finding `json:"findings"`
	Config   Config              `json:"config"`

	// Potentials holds checked-item counts: lang -> detector -> count.
	Potentials       map[string]map[string]int       `json:"potentials"`
	ScanCompleteness map[string]string               `json:"scan_completeness,omitempty"`
	CodebaseMetrics  map[string]map[string]any       `json:"codebase_metrics,omitempty"`
	DimensionScores  map[string]DimensionScore       `json:"dimension_scores"`
	Assessments      map[string]*SubjectiveAssessment `json:"subjective_assessments"`
	Integrity        *SubjectiveIntegrity            `json:"subjective_integrity,omitempty"`
	ScanHistory      []ScanHistoryEntry              `json:"scan_history"`
}

// NewState returns an empty state stamped with the current time.
func NewState() *State {
	s := &State{
		Version: CurrentVersion,
		Created: Now(),
	}
	EnsureDefaults(s)
	return s
}

// Config is the per-state configuration persisted with the findings.
type Config struct {
	Ignore                   []string `json:"ignore"`
	Exclude                  []string `json:"exclude,omitempty"`
	FindingNoiseBudget       *int     `json:"finding_noise_budget,omitempty"`
	FindingNoiseGlobalBudget *int     `json:"finding_noise_global_budget,omitempty"`
	TargetStrictScore        *float64 `json:"target_strict_score,omitempty"`
}

// StatusCounts tallies findings by status.
type StatusCounts struct {
	Open          int `json:"open"`
	Fixed         int `json:"fixed"`
	AutoResolved  int `json:"auto_resolved"`
	Wontfix       int `json:"wontfix"`
	FalsePositive int `json:"false_positive"`
}

// Add increments the counter for s. Unknown statuses are ignored.
func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusOpen:
		c.Open++
	case StatusFixed:
		c.Fixed++
	case StatusAutoResolved:
		c.AutoResolved++
	case StatusWontfix:
		c.Wontfix++
	case StatusFalsePositive:
		c.FalsePositive++
	}
}

// Get returns the counter for s.
func (c StatusCounts) Get(s Status) int {
	switch s {
	case StatusOpen:
		return c.Open
	case StatusFixed:
		return c.Fixed
	case StatusAutoResolved:
		return c.AutoResolved
	case StatusWontfix:
		return c.Wontfix
	case StatusFalsePositive:
		return c.FalsePositive
	}
	return 0
}

// Stats summarizes findings by status and by tier.
type Stats struct {
	Total int `json:"total"`
	StatusCounts
	// ByTier is keyed by the tier number as a string ("1".."4").
	ByTier map[string]StatusCounts `json:"by_tier"`
}

// DetectorScore is one detector's contribution to a dimension.
type DetectorScore struct {
	Potential        int     `json:"potential"`
	PassRate         float64 `json:"pass_rate"`
	Issues           int     `json:"issues"`
	WeightedFailures float64 `json:"weighted_failures"`
	ConfiguredWeight float64 `json:"configured_weight,omitempty"`
	Placeholder      bool    `json:"placeholder,omitempty"`
}

// DimensionScore is the computed health of one scoring dimension.
type DimensionScore struct {
	Score               float64                  `json:"score"`
	StrictScore         float64                  `json:"strict_score"`
	VerifiedStrictScore float64                  `json:"verified_strict_score"`
	Checks              int                      `json:"checks"`
	Issues              int                      `json:"issues"`
	Tier                int                      `json:"tier"`
	Detectors           map[string]DetectorScore `json:"detectors"`
	CarriedForward      bool                     `json:"carried_forward,omitempty"`
}

// SubjectiveDetector is the pseudo-detector key that marks a dimension as subjective.
const SubjectiveDetector = "subjective_assessment"

// IsSubjective reports whether the dimension is backed by a subjective assessment.
func (d DimensionScore) IsSubjective() bool {
	_, ok := d.Detectors[SubjectiveDetector]
	return ok
}

// UnmarshalJSON accepts older shapes that stored "strict" instead of
// "strict_score" and predate verified_strict_score.
func (d *DimensionScore) UnmarshalJSON(data []byte) error {
	type plain DimensionScore
	var aux struct {
		plain
		StrictScore         *float64 `json:"strict_score"`
		Strict              *float64 `json:"strict"`
		VerifiedStrictScore *float64 `json:"verified_strict_score"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = DimensionScore(aux.plain)
	switch {
	case aux.StrictScore != nil:
		d.StrictScore = *aux.StrictScore
	case aux.Strict != nil:
		d.StrictScore = *aux.Strict
	default:
		d.StrictScore = d.Score
	}
	if aux.VerifiedStrictScore != nil {
		d.VerifiedStrictScore = *aux.VerifiedStrictScore
	} else {
		d.VerifiedStrictScore = d.StrictScore
	}
	return nil
}

// IntegrityPenaltyTargetMatch tags a subjective score zeroed by the integrity policy.
const IntegrityPenaltyTargetMatch = "target_match_reset"

// SubjectiveAssessment is a human or AI supplied 0-100 score for a dimension.
type SubjectiveAssessment struct {
	Score              float64    `json:"score"`
	Source             string     `json:"source,omitempty"`
	AssessedAt         *time.Time `json:"assessed_at,omitempty"`
	Placeholder        bool       `json:"placeholder,omitempty"`
	NeedsReviewRefresh bool       `json:"needs_review_refresh,omitempty"`
	RefreshReason      string     `json:"refresh_reason,omitempty"`
	StaleSince         *time.Time `json:"stale_since,omitempty"`
	IntegrityPenalty   string     `json:"integrity_penalty,omitempty"`
}

// UnmarshalJSON accepts either a bare number or the object form.
func (a *SubjectiveAssessment) UnmarshalJSON(data []byte) error {
	var score float64
	if err := json.Unmarshal(data, &score); err == nil {
		*a = SubjectiveAssessment{Score: score}
		return nil
	}
	type plain SubjectiveAssessment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = SubjectiveAssessment(p)
	return nil
}

// IntegrityStatus is the outcome of the subjective integrity audit
type IntegrityStatus string

const (
	IntegrityDisabled  IntegrityStatus = "disabled"
	IntegrityPass      IntegrityStatus = "pass"
	IntegrityWarn      IntegrityStatus = "warn"
	IntegrityPenalized IntegrityStatus = "penalized"
)

// SubjectiveIntegrity is the last computed anti-gaming audit result.
type SubjectiveIntegrity struct {
	Status            IntegrityStatus `json:"status"`
	TargetScore       *float64        `json:"target_score,omitempty"`
	MatchedCount      int             `json:"matched_count"`
	MatchedDimensions []string        `json:"matched_dimensions"`
	ResetDimensions   []string        `json:"reset_dimensions"`
}

// HistoryIntegrity is the integrity snapshot kept in a scan-history entry.
type HistoryIntegrity struct {
	Status       IntegrityStatus `json:"status"`
	MatchedCount int             `json:"matched_count"`
	ResetCount   int             `json:"reset_count"`
	TargetScore  *float64        `json:"target_score,omitempty"`
}

// HistoryDimension is the per-dimension score pair kept in a scan-history entry.
type HistoryDimension struct {
	Score  float64 `json:"score"`
	Strict float64 `json:"strict"`
}

// ScanHistoryEntry summarizes one merge.
type ScanHistoryEntry struct {
	ScanID              string                      `json:"scan_id,omitempty"`
	Timestamp           time.Time                   `json:"timestamp"`
	Lang                string                      `json:"lang,omitempty"`
	OverallScore        float64                     `json:"overall_score"`
	ObjectiveScore      float64                     `json:"objective_score"`
	StrictScore         float64                     `json:"strict_score"`
	VerifiedStrictScore float64                     `json:"verified_strict_score"`
	Open                int                         `json:"open"`
	DiffNew             int                         `json:"diff_new"`
	DiffResolved        int                         `json:"diff_resolved"`
	Ignored             int                         `json:"ignored"`
	RawFindings         int                         `json:"raw_findings"`
	SuppressedPct       float64                     `json:"suppressed_pct"`
	IgnorePatterns      int                         `json:"ignore_patterns"`
	Integrity           *HistoryIntegrity           `json:"subjective_integrity,omitempty"`
	DimensionScores     map[string]HistoryDimension `json:"dimension_scores,omitempty"`
}
