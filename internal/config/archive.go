package config

import (
	"fmt"
	"time"
)

// ArchiveConfig controls the SQLite scan archive and its pruning.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path overrides DefaultArchivePath.
	Path string `yaml:"path,omitempty"`

	// RetentionDays is how old archived scans must be before pruning.
	// Default: 365, Range: 0-3650. 0 disables pruning.
	RetentionDays int `yaml:"retention_days"`

	// Keep is the minimum number of archived scans kept regardless of age.
	// Default: 50, Range: 0-100000
	Keep int `yaml:"keep"`
}

// DefaultArchiveConfig returns the default archive configuration
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:       true,
		RetentionDays: 365,
		Keep:          50,
	}
}

// Validate checks if the configuration has valid values
func (c ArchiveConfig) Validate() error {
	if c.RetentionDays < 0 || c.RetentionDays > 3650 {
		return fmt.Errorf("retention_days must be between 0 and 3650 (got %d)", c.RetentionDays)
	}
	if c.Keep < 0 || c.Keep > 100000 {
		return fmt.Errorf("keep must be between 0 and 100000 (got %d)", c.Keep)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c ArchiveConfig) String() string {
	return fmt.Sprintf("ArchiveConfig{Enabled: %t, Path: %q, RetentionDays: %d, Keep: %d}",
		c.Enabled, c.Path, c.RetentionDays, c.Keep)
}

// Retention returns the age threshold as a time.Duration
func (c ArchiveConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
