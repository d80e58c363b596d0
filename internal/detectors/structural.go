package detectors

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

// StructuralName is the detector name of the file size outlier pass.
const StructuralName = "structural"

// StructuralDetector reports files whose line count is a statistical
// outlier for the codebase, instead of comparing against a fixed limit.
type StructuralDetector struct {
	// OutlierThreshold is number of standard deviations for outlier detection
	// Default: 2.5 (files >2.5σ from mean are reported)
	OutlierThreshold float64

	// FileExtensions to scan
	FileExtensions []string

	// ExcludePatterns for files/directories to skip
	ExcludePatterns []string

	// Zone overrides the path-convention zone for a file when it returns non-empty.
	Zone func(relPath string) string
}

// NewStructuralDetector creates a detector with sensible defaults.
func NewStructuralDetector() *StructuralDetector {
	return &StructuralDetector{
		OutlierThreshold: 2.5,
		FileExtensions:   []string{".go", ".py", ".ts", ".tsx", ".js"},
		ExcludePatterns: []string{
			"vendor/",
			"node_modules/",
			".git/",
			".desloppify/",
			"testdata/",
			".pb.go",  // Generated protobuf
			".gen.go", // Other generated code
		},
	}
}

// Name implements Detector.
func (d *StructuralDetector) Name() string { return StructuralName }

// Lang implements Detector. File size applies to every language.
func (d *StructuralDetector) Lang() string { return "" }

// Slow implements Detector.
func (d *StructuralDetector) Slow() bool { return false }

// Run implements Detector. The potential is the number of files scanned.
func (d *StructuralDetector) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	sizes, err := d.scanFiles(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scanning files: %w", err)
	}

	res := &Result{
		Findings:   []types.RawFinding{},
		Potentials: map[string]int{StructuralName: len(sizes)},
	}
	if len(sizes) > 0 {
		dist := calculateDistribution(sizes)
		for _, s := range findOutliers(sizes, dist, d.OutlierThreshold) {
			res.Findings = append(res.Findings, d.buildFinding(s, dist))
		}
	}
	res.Stats = CheckStats{FilesScanned: len(sizes), Duration: time.Since(start)}
	return res, nil
}

// fileSize represents a file and its line count.
type fileSize struct {
	Path  string
	Lines int
}

// scanFiles walks the directory tree and counts lines in matching files.
func (d *StructuralDetector) scanFiles(ctx context.Context, root string) ([]fileSize, error) {
	var sizes []fileSize

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if ShouldExcludePath(rel+"/", d.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if ShouldExcludePath(rel, d.ExcludePatterns) || !d.hasExtension(rel) {
			return nil
		}

		lines, err := countLines(path)
		if err != nil {
			// Unreadable files are skipped, not fatal.
			return nil
		}
		sizes = append(sizes, fileSize{Path: rel, Lines: lines})
		return nil
	})

	return sizes, err
}

func (d *StructuralDetector) hasExtension(rel string) bool {
	for _, ext := range d.FileExtensions {
		if strings.HasSuffix(rel, ext) {
			return true
		}
	}
	return false
}

// countLines counts lines in a file using streaming to avoid memory exhaustion.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	count := 0
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// calculateDistribution computes statistical distribution of file sizes.
func calculateDistribution(sizes []fileSize) Distribution {
	if len(sizes) == 0 {
		return Distribution{}
	}

	sorted := make([]int, len(sizes))
	sum := 0
	for i, s := range sizes {
		sorted[i] = s.Lines
		sum += s.Lines
	}
	sort.Ints(sorted)
	mean := float64(sum) / float64(len(sorted))

	variance := 0.0
	for _, l := range sorted {
		diff := float64(l) - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(sorted)))

	// Percentiles with bounds checking for small datasets
	p95Idx := int(float64(len(sorted)) * 0.95)
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}
	p99Idx := int(float64(len(sorted)) * 0.99)
	if p99Idx >= len(sorted) {
		p99Idx = len(sorted) - 1
	}

	return Distribution{
		Mean:   mean,
		Median: float64(sorted[len(sorted)/2]),
		StdDev: stdDev,
		P95:    float64(sorted[p95Idx]),
		P99:    float64(sorted[p99Idx]),
		Min:    float64(sorted[0]),
		Max:    float64(sorted[len(sorted)-1]),
		Count:  len(sorted),
	}
}

// findOutliers returns files more than threshold standard deviations above
// the mean, largest first.
func findOutliers(sizes []fileSize, dist Distribution, threshold float64) []fileSize {
	var outliers []fileSize
	for _, s := range sizes {
		if dist.IsUpperOutlier(float64(s.Lines), threshold) {
			outliers = append(outliers, s)
		}
	}
	sort.Slice(outliers, func(i, j int) bool {
		if outliers[i].Lines != outliers[j].Lines {
			return outliers[i].Lines > outliers[j].Lines
		}
		return outliers[i].Path < outliers[j].Path
	})
	return outliers
}

// confidenceFor maps how extreme the outlier is onto finding confidence.
func confidenceFor(lines int, dist Distribution) types.Confidence {
	if dist.StdDev == 0 {
		return types.ConfidenceMedium
	}
	above := dist.StdDevsAbove(float64(lines))
	switch {
	case above > 4.0:
		return types.ConfidenceHigh
	case above > 3.0:
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

func (d *StructuralDetector) buildFinding(s fileSize, dist Distribution) types.RawFinding {
	above := dist.StdDevsAbove(float64(s.Lines))
	return types.RawFinding{
		Detector:   StructuralName,
		File:       s.Path,
		Name:       "large_file",
		Tier:       3,
		Confidence: confidenceFor(s.Lines, dist),
		Summary: fmt.Sprintf("%s is %d lines, %.1fσ above the mean of %.0f",
			s.Path, s.Lines, above, dist.Mean),
		Detail: types.Detail{
			"lines":          s.Lines,
			"mean":           math.Round(dist.Mean*10) / 10,
			"std_devs_above": math.Round(above*100) / 100,
			"p95":            dist.P95,
		},
		Zone: ZoneForPath(s.Path, d.Zone),
	}
}
