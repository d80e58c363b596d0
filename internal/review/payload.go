// Package review imports subjective assessments and review findings, either
// from a JSON file written by a human reviewer or from the AI reviewer.
package review

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xyleth/desloppify-sub004/internal/fsutil"
	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Score is an assessment score that decodes from a bare number or from an
// object with a "score" field.
type Score float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Score(n)
		return nil
	}
	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("assessment must be a number or {\"score\": n}: %w", err)
	}
	if obj.Score == nil {
		return fmt.Errorf("assessment object has no score")
	}
	*s = Score(*obj.Score)
	return nil
}

// Payload is the import format:
//
//	{"assessments": {"naming_quality": 82, "logic_clarity": {"score": 75}},
//	 "findings": [{"file": "src/api.py", "name": "leaky", "summary": "...",
//	               "detail": {"dimension": "abstraction_fitness"}}]}
type Payload struct {
	Assessments map[string]Score   `json:"assessments"`
	Findings    []types.RawFinding `json:"findings"`
}

// ParsePayload decodes an import payload.
func ParsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(fsutil.StripBOM(data), &p); err != nil {
		return nil, fmt.Errorf("parsing review payload: %w", err)
	}
	if len(p.Assessments) == 0 && len(p.Findings) == 0 {
		return nil, fmt.Errorf("review payload has no assessments or findings")
	}
	return &p, nil
}

// LoadPayload reads an import payload from disk.
func LoadPayload(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading review payload: %w", err)
	}
	return ParsePayload(data)
}

// ImportAssessments applies p to s through the engine's review-only merge.
// Nothing is auto-resolved.
func ImportAssessments(e *state.Engine, s *types.State, p *Payload, source string) (*state.ReviewDiff, error) {
	in := state.ReviewImport{
		Assessments: make(map[string]float64, len(p.Assessments)),
		Findings:    p.Findings,
		Source:      source,
	}
	for dim, score := range p.Assessments {
		in.Assessments[dim] = float64(score)
	}
	return e.ImportReview(s, in)
}
