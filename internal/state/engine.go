// Package state owns the persisted findings state: filtering and
// suppression, the noise budget, scan merging, manual resolution,
// stats and score recomputation, and atomic persistence.
//
// Every mutating operation leaves the state with recomputed stats and
// scores and validated invariants, or returns an error before mutating.
package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/xyleth/desloppify-sub004/internal/scoring"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// DefaultHistoryLimit is how many scan-history entries the state file keeps.
const DefaultHistoryLimit = 20

// Engine carries the explicit dependencies of state operations.
type Engine struct {
	Policy *scoring.Policy
	// HistoryLimit caps scan_history; values <= 0 use DefaultHistoryLimit.
	HistoryLimit int
	// Now overrides the clock in tests.
	Now func() time.Time
	// NewID generates scan IDs; nil uses random UUIDs.
	NewID func() string
}

// NewEngine creates an engine with the given scoring policy, or the default
// policy when nil.
func NewEngine(policy *scoring.Policy) *Engine {
	if policy == nil {
		policy = scoring.DefaultPolicy()
	}
	return &Engine{Policy: policy, HistoryLimit: DefaultHistoryLimit}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC().Truncate(time.Second)
	}
	return types.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) historyLimit() int {
	if e.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return e.HistoryLimit
}

func (e *Engine) policy() *scoring.Policy {
	if e.Policy == nil {
		e.Policy = scoring.DefaultPolicy()
	}
	return e.Policy
}
