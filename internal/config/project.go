// Package config loads the per-project configuration from
// .desloppify/config.yaml and applies DESLOPPIFY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xyleth/desloppify-sub004/internal/fsutil"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Default locations, relative to the project root.
const (
	DefaultDir          = ".desloppify"
	DefaultConfigPath   = DefaultDir + "/config.yaml"
	DefaultStatePath    = DefaultDir + "/state.json"
	DefaultArchivePath  = DefaultDir + "/history.db"
	DefaultRunStatePath = DefaultDir + "/detectors.json"
)

// Project is the project configuration.
type Project struct {
	// Exclude lists path components or directory prefixes never scanned or auto-resolved.
	Exclude []string `yaml:"exclude,omitempty"`
	// Ignore lists finding ignore patterns.
	Ignore []string `yaml:"ignore,omitempty"`
	// ZoneOverrides maps a file or directory prefix to a zone (test, generated, vendor...).
	ZoneOverrides map[string]string `yaml:"zone_overrides,omitempty"`

	FindingNoiseBudget       int     `yaml:"finding_noise_budget"`
	FindingNoiseGlobalBudget int     `yaml:"finding_noise_global_budget"`
	TargetStrictScore        float64 `yaml:"target_strict_score"`
	HistoryLimit             int     `yaml:"history_limit"`

	// StatePath overrides DefaultStatePath.
	StatePath string `yaml:"state_path,omitempty"`
	LogJSON   bool   `yaml:"log_json,omitempty"`

	Archive    ArchiveConfig    `yaml:"archive"`
	Structural StructuralConfig `yaml:"structural"`
	Detectors  []DetectorConfig `yaml:"detectors,omitempty"`
	Review     ReviewConfig     `yaml:"review"`
}

// StructuralConfig configures the built-in file size outlier detector.
type StructuralConfig struct {
	Enabled bool `yaml:"enabled"`
	// OutlierThreshold is the number of standard deviations above the mean
	// a file must be to be reported.
	OutlierThreshold float64  `yaml:"outlier_threshold"`
	Extensions       []string `yaml:"extensions"`
	ExcludePatterns  []string `yaml:"exclude_patterns,omitempty"`
}

// DetectorConfig declares an external command detector.
type DetectorConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	Lang    string   `yaml:"lang,omitempty"`
	Slow    bool     `yaml:"slow,omitempty"`
	// Timeout accepts Go durations plus "d" and "w" suffixes. Default 5m.
	Timeout string `yaml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, defaulting to five minutes.
func (d DetectorConfig) TimeoutDuration() (time.Duration, error) {
	if d.Timeout == "" {
		return 5 * time.Minute, nil
	}
	return parseDuration(d.Timeout)
}

// ReviewConfig configures the AI reviewer.
type ReviewConfig struct {
	Model             string  `yaml:"model"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	MaxTokens         int     `yaml:"max_tokens"`
}

// DefaultProject returns the configuration used when no file exists.
func DefaultProject() *Project {
	return &Project{
		FindingNoiseBudget:       10,
		FindingNoiseGlobalBudget: 0,
		TargetStrictScore:        95,
		HistoryLimit:             20,
		Archive:                  DefaultArchiveConfig(),
		Structural: StructuralConfig{
			Enabled:          true,
			OutlierThreshold: 2.5,
			Extensions:       []string{".go", ".py", ".ts", ".tsx", ".js"},
			ExcludePatterns: []string{
				"vendor/",
				"node_modules/",
				".git/",
				DefaultDir + "/",
				"testdata/",
				".pb.go",
				".gen.go",
			},
		},
		Review: ReviewConfig{
			Model:             "claude-sonnet-4-5",
			MaxConcurrent:     2,
			RequestsPerSecond: 1,
			MaxRetries:        3,
			MaxTokens:         4096,
		},
	}
}

// Validate checks if the configuration has valid values
func (p *Project) Validate() error {
	if p.FindingNoiseBudget < 0 {
		return fmt.Errorf("finding_noise_budget cannot be negative (got %d)", p.FindingNoiseBudget)
	}
	if p.FindingNoiseGlobalBudget < 0 {
		return fmt.Errorf("finding_noise_global_budget cannot be negative (got %d)", p.FindingNoiseGlobalBudget)
	}
	if p.TargetStrictScore < 0 || p.TargetStrictScore > 100 {
		return fmt.Errorf("target_strict_score must be between 0 and 100 (got %g)", p.TargetStrictScore)
	}
	if p.HistoryLimit < 1 || p.HistoryLimit > 1000 {
		return fmt.Errorf("history_limit must be between 1 and 1000 (got %d)", p.HistoryLimit)
	}
	if err := p.Archive.Validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if p.Structural.Enabled && p.Structural.OutlierThreshold <= 0 {
		return fmt.Errorf("structural.outlier_threshold must be positive (got %g)", p.Structural.OutlierThreshold)
	}
	for prefix, zone := range p.ZoneOverrides {
		if zone == "" {
			return fmt.Errorf("zone_overrides[%q]: zone is empty", prefix)
		}
	}

	seen := make(map[string]bool, len(p.Detectors))
	for i, d := range p.Detectors {
		if d.Name == "" {
			return fmt.Errorf("detectors[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("detectors[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
		if d.Command == "" {
			return fmt.Errorf("detectors[%d] (%s): command is required", i, d.Name)
		}
		if _, err := d.TimeoutDuration(); err != nil {
			return fmt.Errorf("detectors[%d] (%s): invalid timeout %q: %w", i, d.Name, d.Timeout, err)
		}
	}

	if p.Review.MaxConcurrent < 1 || p.Review.MaxConcurrent > 32 {
		return fmt.Errorf("review.max_concurrent must be between 1 and 32 (got %d)", p.Review.MaxConcurrent)
	}
	if p.Review.RequestsPerSecond <= 0 || p.Review.RequestsPerSecond > 50 {
		return fmt.Errorf("review.requests_per_second must be in (0, 50] (got %g)", p.Review.RequestsPerSecond)
	}
	if p.Review.MaxRetries < 0 || p.Review.MaxRetries > 10 {
		return fmt.Errorf("review.max_retries must be between 0 and 10 (got %d)", p.Review.MaxRetries)
	}
	return nil
}

// LoadProject reads path over the defaults. A missing file yields the defaults.
func LoadProject(path string) (*Project, error) {
	p := DefaultProject()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(fsutil.StripBOM(data), p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return p, nil
}

// Load reads the project file, applies environment overrides and validates
// the result.
func Load(path string) (*Project, error) {
	p, err := LoadProject(path)
	if err != nil {
		return nil, err
	}
	if err := p.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return p, nil
}

// SaveProject writes p to path as YAML.
func SaveProject(path string, p *Project) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// AddIgnorePattern appends pattern unless it is already present.
// It reports whether the list changed.
func (p *Project) AddIgnorePattern(pattern string) bool {
	for _, existing := range p.Ignore {
		if existing == pattern {
			return false
		}
	}
	p.Ignore = append(p.Ignore, pattern)
	return true
}

// ResolveStatePath returns the state file path, relative to root unless absolute.
func (p *Project) ResolveStatePath(root string) string {
	path := p.StatePath
	if path == "" {
		path = DefaultStatePath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ApplyTo copies the settings the state engine reads into the state's config.
// Ignore patterns are merged, keeping those already recorded in state.
func (p *Project) ApplyTo(cfg *types.Config) {
	for _, pattern := range p.Ignore {
		found := false
		for _, existing := range cfg.Ignore {
			if existing == pattern {
				found = true
				break
			}
		}
		if !found {
			cfg.Ignore = append(cfg.Ignore, pattern)
		}
	}
	cfg.Exclude = append([]string(nil), p.Exclude...)
	budget, global, target := p.FindingNoiseBudget, p.FindingNoiseGlobalBudget, p.TargetStrictScore
	cfg.FindingNoiseBudget = &budget
	cfg.FindingNoiseGlobalBudget = &global
	cfg.TargetStrictScore = &target
}

// ZoneFor returns the zone override for a file, or "" when none applies.
// The longest matching prefix wins.
func (p *Project) ZoneFor(file string) string {
	best, zone := -1, ""
	for prefix, z := range p.ZoneOverrides {
		if file == prefix || (len(file) > len(prefix) && file[:len(prefix)] == prefix && (prefix[len(prefix)-1] == '/' || file[len(prefix)] == '/')) {
			if len(prefix) > best {
				best, zone = len(prefix), z
			}
		}
	}
	return zone
}

// parseDuration extends time.ParseDuration to support days and weeks.
func parseDuration(s string) (time.Duration, error) {
	var days int
	if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	var weeks int
	if _, err := fmt.Sscanf(s, "%dw", &weeks); err == nil {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
