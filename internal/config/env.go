package config

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnv overrides p from environment variables.
//
// Environment variables:
//   - DESLOPPIFY_STATE: state file path
//   - DESLOPPIFY_NOISE_BUDGET: findings surfaced per detector (0 = unlimited)
//   - DESLOPPIFY_NOISE_GLOBAL_BUDGET: findings surfaced overall (0 = unlimited)
//   - DESLOPPIFY_TARGET_STRICT_SCORE: integrity target score
//   - DESLOPPIFY_HISTORY_LIMIT: scan history entries kept in the state file
//   - DESLOPPIFY_ARCHIVE: enable the SQLite scan archive
//   - DESLOPPIFY_MODEL: model used by the AI reviewer
//   - DESLOPPIFY_LOG_JSON: emit JSON logs
//
// Returns an error if any environment variable has an invalid value.
func (p *Project) ApplyEnv() error {
	if err := parseEnvString("DESLOPPIFY_STATE", &p.StatePath); err != nil {
		return err
	}
	if err := parseEnvInt("DESLOPPIFY_NOISE_BUDGET", &p.FindingNoiseBudget); err != nil {
		return err
	}
	if err := parseEnvInt("DESLOPPIFY_NOISE_GLOBAL_BUDGET", &p.FindingNoiseGlobalBudget); err != nil {
		return err
	}
	if err := parseEnvFloat("DESLOPPIFY_TARGET_STRICT_SCORE", &p.TargetStrictScore); err != nil {
		return err
	}
	if err := parseEnvInt("DESLOPPIFY_HISTORY_LIMIT", &p.HistoryLimit); err != nil {
		return err
	}
	if err := parseEnvBool("DESLOPPIFY_ARCHIVE", &p.Archive.Enabled); err != nil {
		return err
	}
	if err := parseEnvString("DESLOPPIFY_MODEL", &p.Review.Model); err != nil {
		return err
	}
	if err := parseEnvBool("DESLOPPIFY_LOG_JSON", &p.LogJSON); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}
