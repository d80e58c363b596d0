// Package detectors is the boundary between the state engine and the
// analysis passes that produce raw findings.
//
// Detectors collect facts; the state engine decides what they mean across
// scans. A detector that errors is left out of the ran-set, so the merge
// engine treats its missing findings as suspect instead of fixed.
package detectors

import (
	"context"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Detector produces raw findings for one analysis pass.
type Detector interface {
	// Name returns the unique identifier for this detector.
	Name() string

	// Lang returns the language this detector applies to, or "" for any.
	Lang() string

	// Slow reports whether the detector is skipped by fast scans.
	Slow() bool

	// Run examines the tree under root.
	Run(ctx context.Context, root string) (*Result, error)
}

// Result is one detector's output.
type Result struct {
	Findings []types.RawFinding `json:"findings"`
	// Potentials maps detector name to the number of items checked. A
	// single detector may report several names.
	Potentials map[string]int `json:"potentials,omitempty"`

	Stats CheckStats `json:"-"`
}

// CheckStats tracks statistics from a detector run.
type CheckStats struct {
	FilesScanned int
	Duration     time.Duration
}

// Distribution represents a statistical distribution of values.
// Used for outlier detection (N standard deviations from mean).
type Distribution struct {
	Mean   float64
	Median float64
	StdDev float64
	P95    float64 // 95th percentile
	P99    float64 // 99th percentile
	Min    float64
	Max    float64
	Count  int
}

// IsUpperOutlier returns true if the value is N standard deviations above the mean.
func (d Distribution) IsUpperOutlier(value float64, numStdDevs float64) bool {
	if d.StdDev == 0 {
		return false
	}
	return value > d.Mean+(numStdDevs*d.StdDev)
}

// StdDevsAbove returns how many standard deviations value is above the mean.
func (d Distribution) StdDevsAbove(value float64) float64 {
	if d.StdDev == 0 {
		return 0
	}
	return (value - d.Mean) / d.StdDev
}
