package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/xyleth/desloppify-sub004/internal/fsutil"
	"github.com/xyleth/desloppify-sub004/internal/types"
	"github.com/xyleth/desloppify-sub004/internal/version"
)

// LoadKind tells how LoadState obtained its state.
type LoadKind string

const (
	LoadOK                  LoadKind = "ok"
	LoadRecoveredFromBackup LoadKind = "recovered_from_backup"
	LoadFresh               LoadKind = "fresh"
)

// LoadResult is a loaded state plus how it was obtained. Warning is set for
// degraded loads and forward-compatibility hints.
type LoadResult struct {
	State   *types.State
	Kind    LoadKind
	Warning string
}

// BackupPath is the previous-generation sibling of a state file.
func BackupPath(path string) string { return path + ".bak" }

// CorruptedPath is where an unrecoverable state file is moved.
func CorruptedPath(path string) string { return path + ".corrupted" }

func readStateFile(path string) (*types.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s types.State
	if err := json.Unmarshal(fsutil.StripBOM(data), &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// LoadState reads the state file at path.
//
// A missing file yields a fresh state. An unreadable or malformed file falls
// back to the .bak sibling; when that fails too, the primary is moved aside
// to .corrupted and a fresh state is returned. None of these are errors.
// An error is returned only when the loaded state violates invariants even
// after defaults are applied.
func LoadState(path string) (*LoadResult, error) {
	s, err := readStateFile(path)
	res := &LoadResult{State: s, Kind: LoadOK}

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return &LoadResult{State: types.NewState(), Kind: LoadFresh}, nil
	default:
		slog.Warn("state file unreadable, trying backup", "path", path, "error", err)
		backup, berr := readStateFile(BackupPath(path))
		if berr == nil {
			res = &LoadResult{
				State:   backup,
				Kind:    LoadRecoveredFromBackup,
				Warning: fmt.Sprintf("state file %s was corrupted (%v); recovered from backup", path, err),
			}
			break
		}
		slog.Debug("backup unusable", "path", BackupPath(path), "error", berr)

		warning := fmt.Sprintf("state file %s was corrupted (%v); starting fresh", path, err)
		if rerr := os.Rename(path, CorruptedPath(path)); rerr != nil {
			slog.Warn("could not preserve corrupted state file", "path", path, "error", rerr)
		} else {
			warning += fmt.Sprintf("; original kept at %s", CorruptedPath(path))
		}
		slog.Warn("starting with fresh state", "path", path)
		return &LoadResult{State: types.NewState(), Kind: LoadFresh, Warning: warning}, nil
	}

	if hint := versionHint(res.State); hint != "" {
		slog.Warn(hint, "path", path)
		res.Warning = joinWarnings(res.Warning, hint)
	}

	types.EnsureDefaults(res.State)
	if err := types.ValidateInvariants(res.State); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return res, nil
}

func versionHint(s *types.State) string {
	switch {
	case s.Version > types.CurrentVersion:
		return fmt.Sprintf("state file version %d is newer than supported version %d; some fields may be ignored",
			s.Version, types.CurrentVersion)
	case version.IsNewer(s.ToolVersion):
		return fmt.Sprintf("state file was written by %s, newer than this tool (%s)", s.ToolVersion, version.Version)
	}
	return ""
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	return strings.Join([]string{a, b}, "; ")
}

// SaveState recomputes scores, validates invariants and writes s to path
// atomically, keeping the previous file as .bak.
//
// The integrity target is target when non-nil, otherwise the configured
// target_strict_score, otherwise the target of the last integrity audit.
// A file written by a newer schema or tool keeps its higher version stamps.
func (e *Engine) SaveState(s *types.State, path string, target *float64) error {
	e.Recompute(s, s.ScanPath, integrityTarget(s, target))
	if err := types.ValidateInvariants(s); err != nil {
		return err
	}
	if s.Version < types.CurrentVersion {
		s.Version = types.CurrentVersion
	}
	if !version.IsNewer(s.ToolVersion) {
		s.ToolVersion = version.Version
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing state: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := fsutil.CopyFile(path, BackupPath(path)); err != nil {
			slog.Warn("could not back up state file", "path", path, "error", err)
		}
	}

	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}
