package scoring

import (
	"math"
	"sort"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Field selects which per-dimension score an aggregate reads.
type Field int

const (
	FieldScore Field = iota
	FieldStrict
	FieldVerifiedStrict
)

func (f Field) of(d types.DimensionScore) float64 {
	switch f {
	case FieldStrict:
		return d.StrictScore
	case FieldVerifiedStrict:
		return d.VerifiedStrictScore
	}
	return d.Score
}

// DimensionScoresByMode computes dimension scores for every mode in one pass.
// In each returned map, Score holds that mode's value.
func (p *Policy) DimensionScoresByMode(findings map[string]*types.Finding, potentials map[string]int,
	assessments map[string]*types.SubjectiveAssessment) map[Mode]map[string]types.DimensionScore {

	results := make(map[Mode]map[string]types.DimensionScore, len(Modes))
	for _, mode := range Modes {
		results[mode] = make(map[string]types.DimensionScore)
	}

	for _, dim := range p.Dimensions() {
		type total struct {
			checks    int
			issues    int
			weighted  float64
			detectors map[string]types.DetectorScore
		}
		totals := make(map[Mode]*total, len(Modes))
		for _, mode := range Modes {
			totals[mode] = &total{detectors: make(map[string]types.DetectorScore)}
		}

		for _, det := range dim.Detectors {
			potential := potentials[det]
			if potential <= 0 {
				continue
			}
			stats := p.DetectorStatsByMode(det, findings, potential)
			for _, mode := range Modes {
				st := stats[mode]
				t := totals[mode]
				t.checks += potential
				t.issues += st.Issues
				t.weighted += st.WeightedFailures
				t.detectors[det] = types.DetectorScore{
					Potential:        potential,
					PassRate:         st.PassRate,
					Issues:           st.Issues,
					WeightedFailures: st.WeightedFailures,
				}
			}
		}

		for _, mode := range Modes {
			t := totals[mode]
			if t.checks <= 0 {
				continue
			}
			score := math.Max(0, (float64(t.checks)-t.weighted)/float64(t.checks)) * 100
			results[mode][dim.Name] = types.DimensionScore{
				Score:     Round1(score),
				Tier:      dim.Tier,
				Checks:    t.checks,
				Issues:    t.issues,
				Detectors: t.detectors,
			}
		}
	}

	for _, mode := range Modes {
		p.appendSubjective(results[mode], findings, assessments, mode)
	}
	return results
}

// BreakdownEntry is one dimension's share of the overall score.
type BreakdownEntry struct {
	Name             string  `json:"name"`
	Pool             string  `json:"pool"`
	Score            float64 `json:"score"`
	Checks           float64 `json:"checks"`
	SampleFactor     float64 `json:"sample_factor"`
	ConfiguredWeight float64 `json:"configured_weight"`
	EffectiveWeight  float64 `json:"effective_weight"`
	PoolShare        float64 `json:"pool_share"`
	PerPoint         float64 `json:"overall_per_point"`
	Contribution     float64 `json:"overall_contribution"`
	Drag             float64 `json:"overall_drag"`
}

// HealthBreakdown explains how the overall score was assembled.
type HealthBreakdown struct {
	OverallScore       float64          `json:"overall_score"`
	MechanicalFraction float64          `json:"mechanical_fraction"`
	SubjectiveFraction float64          `json:"subjective_fraction"`
	MechanicalAvg      float64          `json:"mechanical_avg"`
	SubjectiveAvg      *float64         `json:"subjective_avg"`
	Entries            []BreakdownEntry `json:"entries"`
}

func (p *Policy) subjectiveDimWeight(name string, d types.DimensionScore) float64 {
	if meta, ok := d.Detectors[types.SubjectiveDetector]; ok && meta.ConfiguredWeight > 0 {
		return meta.ConfiguredWeight
	}
	return p.SubjectiveWeight(NormalizeDimensionKey(name))
}

// Breakdown blends the mechanical and subjective pools.
//
// Mechanical dimensions are weighted by their configured weight damped by
// min(1, checks/MinSample). Subjective dimensions use their configured weight.
// When both pools are present they are blended by the configured fractions,
// otherwise the present pool is used alone. An empty input scores 100.
func (p *Policy) Breakdown(dims map[string]types.DimensionScore, field Field) HealthBreakdown {
	if len(dims) == 0 {
		return HealthBreakdown{OverallScore: 100, MechanicalFraction: 1, MechanicalAvg: 100, Entries: []BreakdownEntry{}}
	}

	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)

	var mechSum, mechWeight, subjSum, subjWeight float64
	var mechRows, subjRows []BreakdownEntry

	for _, name := range names {
		d := dims[name]
		score := field.of(d)
		if d.IsSubjective() {
			w := math.Max(0, p.subjectiveDimWeight(name, d))
			subjSum += score * w
			subjWeight += w
			subjRows = append(subjRows, BreakdownEntry{
				Name: name, Pool: "subjective", Score: score,
				SampleFactor: 1, ConfiguredWeight: w, EffectiveWeight: w,
			})
			continue
		}
		checks := float64(d.Checks)
		sample := 0.0
		if checks > 0 {
			sample = math.Min(1, checks/p.MinSample)
		}
		configured := math.Max(0, p.mechanicalWeight(name))
		effective := configured * sample
		mechSum += score * effective
		mechWeight += effective
		mechRows = append(mechRows, BreakdownEntry{
			Name: name, Pool: "mechanical", Score: score, Checks: checks,
			SampleFactor: sample, ConfiguredWeight: configured, EffectiveWeight: effective,
		})
	}

	b := HealthBreakdown{MechanicalAvg: 100}
	if mechWeight > 0 {
		b.MechanicalAvg = mechSum / mechWeight
	}
	if subjWeight > 0 {
		avg := subjSum / subjWeight
		b.SubjectiveAvg = &avg
	}

	switch {
	case b.SubjectiveAvg == nil:
		b.MechanicalFraction = 1
		b.OverallScore = Round1(b.MechanicalAvg)
	case mechWeight == 0:
		b.SubjectiveFraction = 1
		b.OverallScore = Round1(*b.SubjectiveAvg)
	default:
		b.MechanicalFraction = p.MechanicalFraction()
		b.SubjectiveFraction = p.SubjectiveFraction
		b.OverallScore = Round1(b.MechanicalAvg*b.MechanicalFraction + *b.SubjectiveAvg*b.SubjectiveFraction)
	}

	finish := func(rows []BreakdownEntry, poolWeight, fraction float64) {
		for _, r := range rows {
			if poolWeight > 0 {
				r.PoolShare = r.EffectiveWeight / poolWeight
			}
			r.PerPoint = fraction * r.PoolShare
			r.Contribution = r.PerPoint * r.Score
			r.Drag = r.PerPoint * (100 - r.Score)
			b.Entries = append(b.Entries, r)
		}
	}
	b.Entries = make([]BreakdownEntry, 0, len(mechRows)+len(subjRows))
	finish(mechRows, mechWeight, b.MechanicalFraction)
	finish(subjRows, subjWeight, b.SubjectiveFraction)
	return b
}

// HealthScore is the overall score for dims read through field.
func (p *Policy) HealthScore(dims map[string]types.DimensionScore, field Field) float64 {
	return p.Breakdown(dims, field).OverallScore
}

// Bundle is every score channel from one scoring pass.
type Bundle struct {
	DimensionScores     map[string]types.DimensionScore
	OverallScore        float64
	ObjectiveScore      float64
	StrictScore         float64
	VerifiedStrictScore float64
}

// ComputeBundle scores findings against potentials and assessments.
// The returned dimension scores carry all three per-mode values.
func (p *Policy) ComputeBundle(findings map[string]*types.Finding, potentials map[string]int,
	assessments map[string]*types.SubjectiveAssessment) Bundle {

	byMode := p.DimensionScoresByMode(findings, potentials, assessments)
	lenient := byMode[ModeLenient]

	dims := make(map[string]types.DimensionScore, len(lenient))
	for name, d := range lenient {
		d.StrictScore = byMode[ModeStrict][name].Score
		d.VerifiedStrictScore = byMode[ModeVerifiedStrict][name].Score
		dims[name] = d
	}

	return Bundle{
		DimensionScores: dims,
		OverallScore:    p.HealthScore(dims, FieldScore),
		ObjectiveScore:  p.HealthScore(Mechanical(dims), FieldScore),
		StrictScore:     p.HealthScore(dims, FieldStrict),
		// Verified strict ignores subjective dimensions entirely.
		VerifiedStrictScore: p.HealthScore(Mechanical(dims), FieldVerifiedStrict),
	}
}

// Aggregates recomputes the four aggregate scores from stored dimension scores.
func (p *Policy) Aggregates(dims map[string]types.DimensionScore) (overall, objective, strict, verified float64) {
	mech := Mechanical(dims)
	return p.HealthScore(dims, FieldScore),
		p.HealthScore(mech, FieldScore),
		p.HealthScore(dims, FieldStrict),
		p.HealthScore(mech, FieldVerifiedStrict)
}

// Mechanical filters out subjective dimensions.
func Mechanical(dims map[string]types.DimensionScore) map[string]types.DimensionScore {
	out := make(map[string]types.DimensionScore, len(dims))
	for name, d := range dims {
		if !d.IsSubjective() {
			out[name] = d
		}
	}
	return out
}

// ScoreImpact estimates how much the overall score would rise if n issues
// from detector were fixed, assuming each removes one unit of weighted failure.
func (p *Policy) ScoreImpact(dims map[string]types.DimensionScore, potentials map[string]int, detector string, n int) float64 {
	dim, ok := p.DimensionForDetector(detector)
	if !ok {
		return 0
	}
	dimData, ok := dims[dim.Name]
	if !ok || potentials[detector] <= 0 {
		return 0
	}
	det, ok := dimData.Detectors[detector]
	if !ok {
		return 0
	}

	newWeighted := math.Max(0, det.WeightedFailures-float64(n))
	totalPotential := 0
	totalWeighted := 0.0
	for _, name := range dim.Detectors {
		d, ok := dimData.Detectors[name]
		if !ok {
			continue
		}
		totalPotential += d.Potential
		if name == detector {
			totalWeighted += newWeighted
		} else {
			totalWeighted += d.WeightedFailures
		}
	}
	if totalPotential <= 0 {
		return 0
	}

	before := p.HealthScore(dims, FieldScore)
	simulated := make(map[string]types.DimensionScore, len(dims))
	for name, d := range dims {
		simulated[name] = d
	}
	dimData.Score = Round1(math.Max(0, (float64(totalPotential)-totalWeighted)/float64(totalPotential)) * 100)
	simulated[dim.Name] = dimData
	return Round1(p.HealthScore(simulated, FieldScore) - before)
}
