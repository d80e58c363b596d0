package detectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xyleth/desloppify-sub004/internal/fsutil"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// ParseResult decodes detector output: either {"findings": [...],
// "potentials": {...}} or a bare array of findings. Every finding is
// validated.
func ParseResult(data []byte) (*Result, error) {
	return parseResult(data, "")
}

// parseResult fills an empty finding detector with defaultDetector before
// validating.
func parseResult(data []byte, defaultDetector string) (*Result, error) {
	data = bytes.TrimSpace(fsutil.StripBOM(data))
	if len(data) == 0 {
		return nil, fmt.Errorf("empty detector output")
	}

	res := &Result{}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &res.Findings); err != nil {
			return nil, fmt.Errorf("parsing findings: %w", err)
		}
	} else if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("parsing detector output: %w", err)
	}

	if res.Findings == nil {
		res.Findings = []types.RawFinding{}
	}
	for i := range res.Findings {
		if res.Findings[i].Detector == "" {
			res.Findings[i].Detector = defaultDetector
		}
		if err := res.Findings[i].Validate(); err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
	}
	return res, nil
}

// LoadRawFindings imports a saved detector-output file.
func LoadRawFindings(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading findings file: %w", err)
	}
	res, err := ParseResult(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
