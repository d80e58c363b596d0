// Package scoring turns findings, detector potentials and subjective
// assessments into per-dimension and aggregate health scores.
//
// All weights and dimension assignments live on an explicit Policy value.
// DefaultPolicy returns the stock configuration; callers that add detectors
// register scoring rules on their own Policy instead of mutating globals.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Mode selects which statuses count as failures.
type Mode string

const (
	ModeLenient        Mode = "lenient"
	ModeStrict         Mode = "strict"
	ModeVerifiedStrict Mode = "verified_strict"
)

// Modes lists every scoring mode in evaluation order.
var Modes = []Mode{ModeLenient, ModeStrict, ModeVerifiedStrict}

// IsValid checks if the mode value is valid
func (m Mode) IsValid() bool {
	switch m {
	case ModeLenient, ModeStrict, ModeVerifiedStrict:
		return true
	}
	return false
}

// failureStatuses maps each mode to the statuses that count against the score.
// Only scan-verified auto_resolved passes in verified_strict.
var failureStatuses = map[Mode]map[types.Status]bool{
	ModeLenient: {types.StatusOpen: true},
	ModeStrict:  {types.StatusOpen: true, types.StatusWontfix: true},
	ModeVerifiedStrict: {
		types.StatusOpen:          true,
		types.StatusWontfix:       true,
		types.StatusFixed:         true,
		types.StatusFalsePositive: true,
	},
}

// IsFailure reports whether a finding with status s counts against the score in mode m.
func IsFailure(m Mode, s types.Status) bool {
	return failureStatuses[m][s]
}

// DetectorPolicy describes how one detector's findings are scored.
type DetectorPolicy struct {
	Detector string
	// Dimension is empty for detectors that are never scored mechanically.
	Dimension string
	Tier      int
	// FileBased detectors use a file count as potential, so weighted
	// failures are capped per file.
	FileBased     bool
	UseLOCWeight  bool
	ExcludedZones map[string]bool
}

// Dimension is a named scoring category aggregating detectors.
type Dimension struct {
	Name      string
	Tier      int
	Detectors []string
}

// Policy is the complete scoring configuration.
type Policy struct {
	detectors map[string]DetectorPolicy
	dimSpecs  []Dimension

	ConfidenceWeights  map[types.Confidence]float64
	MechanicalWeights  map[string]float64
	SubjectiveWeights  map[string]float64
	DisplayNames       map[string]string
	SubjectiveDefaults []string

	MinSample          float64
	SubjectiveFraction float64
	HolisticMultiplier float64
	SubjectiveChecks   int
	MatchTolerance     float64
	ResetThreshold     int
}

// DefaultExcludedZones are zones whose findings never count toward the score.
var DefaultExcludedZones = []string{"test", "config", "generated", "vendor"}

func zoneSet(zones ...string) map[string]bool {
	out := make(map[string]bool, len(zones))
	for _, z := range zones {
		out[z] = true
	}
	return out
}

// DefaultPolicy returns the stock scoring configuration.
func DefaultPolicy() *Policy {
	p := &Policy{
		detectors: make(map[string]DetectorPolicy),
		dimSpecs: []Dimension{
			{Name: "File health", Tier: 3},
			{Name: "Code quality", Tier: 3},
			{Name: "Duplication", Tier: 3},
			{Name: "Test health", Tier: 4},
			{Name: "Security", Tier: 4},
		},
		ConfidenceWeights: map[types.Confidence]float64{
			types.ConfidenceHigh:   1.0,
			types.ConfidenceMedium: 0.7,
			types.ConfidenceLow:    0.3,
		},
		MechanicalWeights: map[string]float64{
			"file health":  2.0,
			"code quality": 1.0,
			"duplication":  1.0,
			"test health":  1.0,
			"security":     1.0,
		},
		SubjectiveWeights: map[string]float64{
			"high elegance":     22.0,
			"mid elegance":      22.0,
			"low elegance":      12.0,
			"contracts":         12.0,
			"type safety":       12.0,
			"abstraction fit":   8.0,
			"logic clarity":     6.0,
			"structure nav":     5.0,
			"error consistency": 3.0,
			"naming quality":    2.0,
			"ai generated debt": 1.0,
			"design coherence":  10.0,
		},
		DisplayNames: map[string]string{
			"cross_module_architecture": "Cross-Module Arch",
			"initialization_coupling":   "Init Coupling",
			"convention_outlier":        "Convention Drift",
			"error_consistency":         "Error Consistency",
			"abstraction_fitness":       "Abstraction Fit",
			"dependency_health":         "Dep Health",
			"test_strategy":             "Test Strategy",
			"api_surface_coherence":     "API Coherence",
			"authorization_consistency": "Auth Consistency",
			"ai_generated_debt":         "AI Generated Debt",
			"incomplete_migration":      "Stale Migration",
			"package_organization":      "Structure Nav",
			"high_level_elegance":       "High Elegance",
			"mid_level_elegance":        "Mid Elegance",
			"low_level_elegance":        "Low Elegance",
			"design_coherence":          "Design Coherence",
			"naming_quality":            "Naming Quality",
			"logic_clarity":             "Logic Clarity",
			"type_safety":               "Type Safety",
			"contract_coherence":        "Contracts",
		},
		SubjectiveDefaults: []string{
			"naming_quality",
			"comment_quality",
			"error_consistency",
			"convention_outlier",
			"abstraction_fitness",
			"logic_clarity",
			"contract_coherence",
			"initialization_coupling",
			"logging_quality",
			"type_safety",
			"cross_module_architecture",
		},
		MinSample:          200,
		SubjectiveFraction: 0.60,
		HolisticMultiplier: 10.0,
		SubjectiveChecks:   10,
		MatchTolerance:     0.05,
		ResetThreshold:     2,
	}

	reg := func(det, dim string, tier int, opts ...func(*DetectorPolicy)) {
		dp := DetectorPolicy{Detector: det, Dimension: dim, Tier: tier}
		for _, o := range opts {
			o(&dp)
		}
		p.detectors[det] = dp
	}
	fileBased := func(dp *DetectorPolicy) { dp.FileBased = true }
	locWeighted := func(dp *DetectorPolicy) { dp.UseLOCWeight = true }
	securityZones := func(dp *DetectorPolicy) { dp.ExcludedZones = zoneSet("test", "config", "generated", "vendor") }

	reg("structural", "File health", 3)
	for _, det := range []string{
		"unused", "logs", "exports", "deprecated", "props", "react",
		"global_mutable_config", "orphaned", "flat_dirs", "naming", "facade",
		"stale_exclude", "patterns", "single_use", "coupling",
		"responsibility_cohesion", "private_imports", "layer_violation",
	} {
		reg(det, "Code quality", 3)
	}
	reg("smells", "Code quality", 3, fileBased)
	reg("dict_keys", "Code quality", 3, fileBased)
	reg("dupes", "Duplication", 3)
	reg("boilerplate_duplication", "Duplication", 3)
	reg("test_coverage", "Test health", 4, fileBased, locWeighted)
	reg("subjective_review", "Test health", 4, fileBased)
	reg("security", "Security", 4, fileBased, securityZones)
	reg("cycles", "Security", 4)
	reg("concerns", "", 0, fileBased)
	reg("review", "", 0, fileBased)

	return p
}

// Register adds or replaces the scoring rule for a detector.
// The dimension must already exist unless it is empty.
func (p *Policy) Register(dp DetectorPolicy) error {
	if dp.Detector == "" {
		return fmt.Errorf("detector name is required")
	}
	if dp.Dimension != "" && p.dimensionSpec(dp.Dimension) == nil {
		return fmt.Errorf("unknown dimension %q for detector %s", dp.Dimension, dp.Detector)
	}
	if dp.Dimension != "" && dp.Tier == 0 {
		dp.Tier = p.dimensionSpec(dp.Dimension).Tier
	}
	p.detectors[dp.Detector] = dp
	return nil
}

func (p *Policy) dimensionSpec(name string) *Dimension {
	for i := range p.dimSpecs {
		if p.dimSpecs[i].Name == name {
			return &p.dimSpecs[i]
		}
	}
	return nil
}

// Detector returns the scoring rule for a detector, falling back to an
// unscored policy for unknown detectors.
func (p *Policy) Detector(name string) DetectorPolicy {
	if dp, ok := p.detectors[name]; ok {
		if dp.ExcludedZones == nil {
			dp.ExcludedZones = zoneSet(DefaultExcludedZones...)
		}
		return dp
	}
	return DetectorPolicy{Detector: name, ExcludedZones: zoneSet(DefaultExcludedZones...)}
}

// Dimensions returns the mechanical dimensions in declaration order,
// each listing its detectors sorted by name.
func (p *Policy) Dimensions() []Dimension {
	out := make([]Dimension, 0, len(p.dimSpecs))
	for _, spec := range p.dimSpecs {
		dim := Dimension{Name: spec.Name, Tier: spec.Tier}
		for det, dp := range p.detectors {
			if dp.Dimension == spec.Name {
				dim.Detectors = append(dim.Detectors, det)
			}
		}
		sort.Strings(dim.Detectors)
		out = append(out, dim)
	}
	return out
}

// DimensionForDetector returns the mechanical dimension a detector feeds.
func (p *Policy) DimensionForDetector(detector string) (Dimension, bool) {
	dp, ok := p.detectors[detector]
	if !ok || dp.Dimension == "" {
		return Dimension{}, false
	}
	for _, dim := range p.Dimensions() {
		if dim.Name == dp.Dimension {
			return dim, true
		}
	}
	return Dimension{}, false
}

// MatchesTarget reports whether score lies within the match band of target.
func (p *Policy) MatchesTarget(score, target float64) bool {
	return math.Abs(score-target) <= math.Max(0, p.MatchTolerance)
}

// MechanicalFraction is the share of the overall score owned by mechanical dimensions.
func (p *Policy) MechanicalFraction() float64 {
	return 1.0 - p.SubjectiveFraction
}

// DisplayName returns the human name for a subjective dimension key.
func (p *Policy) DisplayName(dimKey string) string {
	if name, ok := p.DisplayNames[dimKey]; ok {
		return name
	}
	words := strings.Fields(strings.ReplaceAll(dimKey, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// SubjectiveWeight returns the configured weight for a subjective dimension key.
func (p *Policy) SubjectiveWeight(dimKey string) float64 {
	if w, ok := p.SubjectiveWeights[normalizeDisplay(p.DisplayName(dimKey))]; ok {
		return w
	}
	return 1.0
}

func (p *Policy) mechanicalWeight(name string) float64 {
	if w, ok := p.MechanicalWeights[normalizeDisplay(name)]; ok {
		return w
	}
	return 1.0
}

func normalizeDisplay(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeDimensionKey turns "Naming Quality" or "naming-quality" into "naming_quality".
func NormalizeDimensionKey(name string) string {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	return strings.Join(strings.Fields(name), "_")
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
