package detectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xyleth/desloppify-sub004/internal/fsutil"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// Registry manages detectors and the persisted record of their runs.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]Detector
	state     *RunState
	statePath string // empty disables persistence
	now       func() time.Time
}

// RunState tracks the execution history of detectors.
// This is persisted to disk to survive restarts.
type RunState struct {
	Detectors map[string]*DetectorRunState `json:"detectors"`
}

// DetectorRunState tracks the execution history for a single detector.
type DetectorRunState struct {
	LastRun          time.Time `json:"last_run"`
	LastFindingCount int       `json:"last_finding_count"`
	LastPotential    int       `json:"last_potential"`
	LastDurationMS   int64     `json:"last_duration_ms"`
	LastError        string    `json:"last_error,omitempty"`
	RunCount         int       `json:"run_count"`
	FailureCount     int       `json:"failure_count"`
}

// NewRegistry creates a registry. statePath points to the run-state file
// (e.g. .desloppify/detectors.json); an empty path keeps state in memory.
func NewRegistry(statePath string) (*Registry, error) {
	r := &Registry{
		detectors: make(map[string]Detector),
		state:     &RunState{Detectors: make(map[string]*DetectorRunState)},
		statePath: statePath,
		now:       time.Now,
	}
	if statePath == "" {
		return r, nil
	}
	if err := r.loadState(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading detector state: %w", err)
	}
	return r, nil
}

// Register adds a detector to the registry.
func (r *Registry) Register(d Detector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if name == "" {
		return fmt.Errorf("detector name is required")
	}
	if _, exists := r.detectors[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.detectors[name] = d
	if _, exists := r.state.Detectors[name]; !exists {
		r.state.Detectors[name] = &DetectorRunState{}
	}
	return nil
}

// Get returns a registered detector by name.
func (r *Registry) Get(name string) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	return d, ok
}

// List returns all registered detector names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunStateFor returns a copy of the recorded state for a detector.
func (r *Registry) RunStateFor(name string) (DetectorRunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.state.Detectors[name]
	if !ok {
		return DetectorRunState{}, false
	}
	return *s, true
}

// RunOptions selects which detectors run.
type RunOptions struct {
	// Lang skips detectors bound to another language.
	Lang string
	// SkipSlow skips detectors reporting Slow.
	SkipSlow bool
	// Only restricts the run to the named detectors when non-empty.
	Only []string
	// MaxConcurrent bounds parallel detectors; <= 0 uses GOMAXPROCS.
	MaxConcurrent int
}

// Batch is the combined output of one registry run.
type Batch struct {
	Findings []types.RawFinding
	// Potentials has one key per detector that completed. Its key set is the
	// ran-set the merge engine uses for suspect detection.
	Potentials map[string]int
	Ran        []string
	Skipped    []string
	Failed     map[string]error
}

// Run executes the selected detectors with bounded concurrency.
//
// A detector error is recorded and excluded from the ran-set; it does not
// fail the batch. Run returns an error only when ctx is cancelled or the
// selection names an unknown detector.
func (r *Registry) Run(ctx context.Context, root string, opts RunOptions) (*Batch, error) {
	selected, skipped, err := r.selectDetectors(opts)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(limit))

	type outcome struct {
		res      *Result
		err      error
		duration time.Duration
	}
	outcomes := make([]outcome, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range selected {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			start := time.Now()
			res, err := d.Run(gctx, root)
			if err == nil && res == nil {
				res = &Result{}
			}
			outcomes[i] = outcome{res: res, err: err, duration: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("running detectors: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("running detectors: %w", err)
	}

	batch := &Batch{
		Findings:   []types.RawFinding{},
		Potentials: make(map[string]int),
		Skipped:    skipped,
		Failed:     make(map[string]error),
	}
	for i, d := range selected {
		o := outcomes[i]
		name := d.Name()
		if o.err != nil {
			slog.Warn("detector failed", "detector", name, "error", o.err)
			batch.Failed[name] = o.err
			r.recordRun(name, nil, o.err, o.duration)
			continue
		}
		batch.Ran = append(batch.Ran, name)
		batch.Findings = append(batch.Findings, o.res.Findings...)
		for det, n := range o.res.Potentials {
			batch.Potentials[det] += n
		}
		if _, ok := batch.Potentials[name]; !ok {
			batch.Potentials[name] = 0
		}
		for _, f := range o.res.Findings {
			if _, ok := batch.Potentials[f.Detector]; !ok {
				batch.Potentials[f.Detector] = 0
			}
		}
		slog.Debug("detector finished", "detector", name, "findings", len(o.res.Findings), "duration", o.duration)
		r.recordRun(name, o.res, nil, o.duration)
	}

	if err := r.save(); err != nil {
		slog.Warn("could not save detector state", "path", r.statePath, "error", err)
	}
	return batch, nil
}

func (r *Registry) selectDetectors(opts RunOptions) (selected []Detector, skipped []string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.detectors))
	if len(opts.Only) > 0 {
		for _, name := range opts.Only {
			if _, ok := r.detectors[name]; !ok {
				return nil, nil, fmt.Errorf("detector %q not registered", name)
			}
			names = append(names, name)
		}
	} else {
		for name := range r.detectors {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		d := r.detectors[name]
		switch {
		case opts.SkipSlow && d.Slow():
			skipped = append(skipped, name)
		case opts.Lang != "" && d.Lang() != "" && d.Lang() != opts.Lang:
			skipped = append(skipped, name)
		default:
			selected = append(selected, d)
		}
	}
	return selected, skipped, nil
}

// recordRun updates the state after a detector completes execution.
func (r *Registry) recordRun(name string, res *Result, runErr error, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state.Detectors[name]
	if !ok {
		st = &DetectorRunState{}
		r.state.Detectors[name] = st
	}
	st.LastRun = r.now().UTC()
	st.LastDurationMS = duration.Milliseconds()
	st.RunCount++
	if runErr != nil {
		st.FailureCount++
		st.LastError = runErr.Error()
		return
	}
	st.LastError = ""
	st.LastFindingCount = len(res.Findings)
	st.LastPotential = res.Potentials[name]
}

// loadState loads detector state from disk.
func (r *Registry) loadState() error {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		return err
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parsing state file: %w", err)
	}
	if st.Detectors == nil {
		st.Detectors = make(map[string]*DetectorRunState)
	}
	r.state = &st
	return nil
}

// save persists detector state to disk.
func (r *Registry) save() error {
	if r.statePath == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fsutil.WriteJSONAtomic(r.statePath, r.state)
}
