package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

func TestDefaultProjectIsValid(t *testing.T) {
	p := DefaultProject()
	require.NoError(t, p.Validate())
	assert.Equal(t, 10, p.FindingNoiseBudget)
	assert.Equal(t, 0, p.FindingNoiseGlobalBudget)
	assert.Equal(t, 95.0, p.TargetStrictScore)
	assert.Equal(t, 20, p.HistoryLimit)
	assert.True(t, p.Archive.Enabled)
}

func TestProjectValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Project)
		wantErr string
	}{
		{"negative budget", func(p *Project) { p.FindingNoiseBudget = -1 }, "finding_noise_budget"},
		{"negative global budget", func(p *Project) { p.FindingNoiseGlobalBudget = -3 }, "finding_noise_global_budget"},
		{"target too high", func(p *Project) { p.TargetStrictScore = 101 }, "target_strict_score"},
		{"history zero", func(p *Project) { p.HistoryLimit = 0 }, "history_limit"},
		{"history too large", func(p *Project) { p.HistoryLimit = 5000 }, "history_limit"},
		{"archive keep negative", func(p *Project) { p.Archive.Keep = -1 }, "archive: keep"},
		{"structural threshold", func(p *Project) { p.Structural.OutlierThreshold = 0 }, "outlier_threshold"},
		{"detector without name", func(p *Project) {
			p.Detectors = []DetectorConfig{{Command: "lint"}}
		}, "name is required"},
		{"duplicate detector", func(p *Project) {
			p.Detectors = []DetectorConfig{{Name: "a", Command: "x"}, {Name: "a", Command: "y"}}
		}, "duplicate name"},
		{"detector without command", func(p *Project) {
			p.Detectors = []DetectorConfig{{Name: "a"}}
		}, "command is required"},
		{"bad timeout", func(p *Project) {
			p.Detectors = []DetectorConfig{{Name: "a", Command: "x", Timeout: "soon"}}
		}, "invalid timeout"},
		{"empty zone", func(p *Project) { p.ZoneOverrides = map[string]string{"gen/": ""} }, "zone is empty"},
		{"review concurrency", func(p *Project) { p.Review.MaxConcurrent = 0 }, "max_concurrent"},
		{"review rate", func(p *Project) { p.Review.RequestsPerSecond = 0 }, "requests_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProject()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProject(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		p, err := LoadProject(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultProject(), p)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
exclude: [vendor, build/out]
ignore:
  - "smells::*::async_no_await"
finding_noise_budget: 3
detectors:
  - name: eslint
    command: npx
    args: [eslint-desloppify]
    lang: typescript
    timeout: 2m
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		p, err := LoadProject(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"vendor", "build/out"}, p.Exclude)
		assert.Equal(t, []string{"smells::*::async_no_await"}, p.Ignore)
		assert.Equal(t, 3, p.FindingNoiseBudget)
		assert.Equal(t, 20, p.HistoryLimit, "unset keys keep defaults")
		require.Len(t, p.Detectors, 1)
		timeout, err := p.Detectors[0].TimeoutDuration()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, timeout)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("exclude: [unterminated"), 0o644))
		_, err := LoadProject(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing YAML")
	})
}

func TestSaveProjectRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigPath)
	p := DefaultProject()
	assert.True(t, p.AddIgnorePattern("src/generated.py"))
	assert.False(t, p.AddIgnorePattern("src/generated.py"))
	p.ZoneOverrides = map[string]string{"gen/": "generated"}

	require.NoError(t, SaveProject(path, p))
	loaded, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestLoadWithEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, p *Project)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, p *Project) {
				assert.Equal(t, DefaultProject(), p)
			},
		},
		{
			name: "valid overrides",
			envVars: map[string]string{
				"DESLOPPIFY_STATE":               "/tmp/state.json",
				"DESLOPPIFY_NOISE_BUDGET":        "4",
				"DESLOPPIFY_NOISE_GLOBAL_BUDGET": "12",
				"DESLOPPIFY_TARGET_STRICT_SCORE": "88.5",
				"DESLOPPIFY_HISTORY_LIMIT":       "50",
				"DESLOPPIFY_ARCHIVE":             "false",
				"DESLOPPIFY_MODEL":               "claude-haiku-4-5",
				"DESLOPPIFY_LOG_JSON":            "1",
			},
			check: func(t *testing.T, p *Project) {
				assert.Equal(t, "/tmp/state.json", p.StatePath)
				assert.Equal(t, 4, p.FindingNoiseBudget)
				assert.Equal(t, 12, p.FindingNoiseGlobalBudget)
				assert.Equal(t, 88.5, p.TargetStrictScore)
				assert.Equal(t, 50, p.HistoryLimit)
				assert.False(t, p.Archive.Enabled)
				assert.Equal(t, "claude-haiku-4-5", p.Review.Model)
				assert.True(t, p.LogJSON)
			},
		},
		{
			name:    "non-numeric budget",
			envVars: map[string]string{"DESLOPPIFY_NOISE_BUDGET": "lots"},
			wantErr: true,
		},
		{
			name:    "invalid bool",
			envVars: map[string]string{"DESLOPPIFY_ARCHIVE": "maybe"},
			wantErr: true,
		},
		{
			name:    "out of range after override",
			envVars: map[string]string{"DESLOPPIFY_TARGET_STRICT_SCORE": "140"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			p, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestApplyTo(t *testing.T) {
	p := DefaultProject()
	p.Ignore = []string{"a.py", "b.py"}
	p.Exclude = []string{"vendor"}

	cfg := types.Config{Ignore: []string{"b.py", "c.py"}}
	p.ApplyTo(&cfg)

	assert.Equal(t, []string{"b.py", "c.py", "a.py"}, cfg.Ignore)
	assert.Equal(t, []string{"vendor"}, cfg.Exclude)
	require.NotNil(t, cfg.FindingNoiseBudget)
	assert.Equal(t, 10, *cfg.FindingNoiseBudget)
	require.NotNil(t, cfg.TargetStrictScore)
	assert.Equal(t, 95.0, *cfg.TargetStrictScore)
}

func TestZoneFor(t *testing.T) {
	p := DefaultProject()
	p.ZoneOverrides = map[string]string{
		"gen":          "generated",
		"gen/keep/":    "production",
		"scripts/x.py": "script",
	}

	assert.Equal(t, "generated", p.ZoneFor("gen/a.py"))
	assert.Equal(t, "production", p.ZoneFor("gen/keep/b.py"))
	assert.Equal(t, "script", p.ZoneFor("scripts/x.py"))
	assert.Equal(t, "", p.ZoneFor("generator/a.py"))
	assert.Equal(t, "", p.ZoneFor("src/a.py"))
}

func TestResolveStatePath(t *testing.T) {
	p := DefaultProject()
	assert.Equal(t, filepath.Join("/repo", DefaultStatePath), p.ResolveStatePath("/repo"))
	p.StatePath = "/abs/state.json"
	assert.Equal(t, "/abs/state.json", p.ResolveStatePath("/repo"))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
