package detectors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/xyleth/desloppify-sub004/internal/config"
)

const maxStderr = 2048

// ExecDetector runs an external command and reads its findings from stdout.
// The command runs in the scan root and must print a JSON object of the
// form {"findings": [...], "potentials": {...}} or a bare findings array.
type ExecDetector struct {
	name    string
	command string
	args    []string
	lang    string
	slow    bool
	timeout time.Duration
}

// NewExecDetector builds a detector from its config entry.
func NewExecDetector(cfg config.DetectorConfig) (*ExecDetector, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("detector name is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("detector %q: command is required", cfg.Name)
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("detector %q: invalid timeout: %w", cfg.Name, err)
	}
	return &ExecDetector{
		name:    cfg.Name,
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		lang:    cfg.Lang,
		slow:    cfg.Slow,
		timeout: timeout,
	}, nil
}

// Name implements Detector.
func (d *ExecDetector) Name() string { return d.name }

// Lang implements Detector.
func (d *ExecDetector) Lang() string { return d.lang }

// Slow implements Detector.
func (d *ExecDetector) Slow() bool { return d.slow }

// Run implements Detector.
func (d *ExecDetector) Run(ctx context.Context, root string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Dir = root
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("detector %q timed out after %v", d.name, d.timeout)
		}
		return nil, fmt.Errorf("detector %q failed: %w%s", d.name, err, stderrSuffix(stderr.String()))
	}

	res, err := parseResult(stdout.Bytes(), d.name)
	if err != nil {
		return nil, fmt.Errorf("detector %q output: %w", d.name, err)
	}
	res.Stats.Duration = time.Since(start)
	return res, nil
}

func stderrSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return ": " + s
}
