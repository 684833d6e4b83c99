// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// FrictionEngine maps usage-threshold events from the external
// accounting source to a discrete friction level and persists it to the
// shared store for the shield processes.
//
// The engine never measures time itself. Levels are a pure function of
// the last valid event received: duplicates are no-ops, and an event
// for a lower threshold than the current level is stale (thresholds
// fire in ascending order within one usage interval) and is ignored, so
// the level never regresses except through OnIntervalEnd.
type FrictionEngine struct {
	state      domain.State
	thresholds []int // ascending minute marks; index == friction level - 1
	now        func() time.Time
	logger     *zap.Logger
}

// NewFrictionEngine creates a friction engine over the shared store.
// thresholds is the ordered list of minute marks from configuration.
func NewFrictionEngine(store domain.StateStore, thresholds []int, logger *zap.Logger) *FrictionEngine {
	return &FrictionEngine{
		state:      domain.State{Store: store},
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger,
	}
}

// MaxLevel returns the highest friction level the configuration allows.
func (e *FrictionEngine) MaxLevel() int {
	return len(e.thresholds)
}

// OnUsageThresholdReached sets the friction level implied by the given
// threshold index. Idempotent: re-delivery of the same threshold, or a
// late delivery of an earlier one, changes nothing.
func (e *FrictionEngine) OnUsageThresholdReached(level int) error {
	if level < 0 || level > e.MaxLevel() {
		return fmt.Errorf("threshold level %d out of range [0,%d]", level, e.MaxLevel())
	}

	current, err := e.state.FrictionLevel()
	if err != nil {
		return fmt.Errorf("failed to read friction level: %w", err)
	}
	if level <= current {
		e.logger.Debug("stale or duplicate threshold event ignored",
			zap.Int("event_level", level),
			zap.Int("current_level", current))
		return nil
	}

	if err := e.state.SetFrictionLevel(level, e.now()); err != nil {
		return fmt.Errorf("failed to persist friction level: %w", err)
	}

	e.logger.Info("friction level escalated",
		zap.Int("from", current),
		zap.Int("to", level))
	return nil
}

// OnIntervalEnd resets the friction level at a usage-interval boundary
// (midnight or guarded-category close). Budget keys are owned by the
// budget enforcer and are left alone.
func (e *FrictionEngine) OnIntervalEnd() error {
	if err := e.state.SetFrictionLevel(0, e.now()); err != nil {
		return fmt.Errorf("failed to reset friction level: %w", err)
	}
	if err := e.state.Store.Delete(domain.KeyFrictionDismissedLevel); err != nil {
		return fmt.Errorf("failed to clear dismissed level: %w", err)
	}

	e.logger.Info("friction interval ended, level reset")
	return nil
}

// OnWillReachThreshold is consulted before the accounting source fires
// a threshold event. It always returns true: suppressing delivery would
// mask churn in the underlying usage accounting, so false positives are
// preferred over silently dropped friction.
func (e *FrictionEngine) OnWillReachThreshold(name string) bool {
	_ = name
	return true
}

// ParseThresholdLevel extracts the level index from a "threshold_<N>"
// event name. Returns an error for any other name.
func ParseThresholdLevel(name string) (int, error) {
	rest, ok := strings.CutPrefix(name, domain.EventThresholdPrefix)
	if !ok {
		return 0, fmt.Errorf("not a threshold event: %q", name)
	}
	level, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("bad threshold index in %q: %w", name, err)
	}
	return level, nil
}
