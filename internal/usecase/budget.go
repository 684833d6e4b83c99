package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// DefaultUnlockWindow is how long an emergency unlock lifts the budget
// lock. Fixed by the protocol, not configurable.
const DefaultUnlockWindow = 30 * time.Minute

// BudgetConfig holds budget enforcement configuration.
type BudgetConfig struct {
	DailyLimitMinutes int
	MaxUnlocksPerDay  int
	UnlockWindow      time.Duration
}

// BudgetEnforcer tracks daily guarded-app usage against the configured
// budget, owns the hard lock, and grants rate-limited emergency unlock
// windows. All state lives in the shared store so shield processes see
// it; expiry of an unlock window is evaluated lazily, never by a
// cross-process timer.
type BudgetEnforcer struct {
	state  domain.State
	config BudgetConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewBudgetEnforcer creates a budget enforcer over the shared store.
func NewBudgetEnforcer(store domain.StateStore, config BudgetConfig, logger *zap.Logger) *BudgetEnforcer {
	if config.UnlockWindow == 0 {
		config.UnlockWindow = DefaultUnlockWindow
	}
	return &BudgetEnforcer{
		state:  domain.State{Store: store},
		config: config,
		now:    time.Now,
		logger: logger,
	}
}

// ResetDaily rolls the budget bookkeeping over to the given day.
// Idempotent: calling it again with the same date key changes nothing.
// It is invoked lazily from every enforcer entry point and eagerly by
// the monitor daemon's midnight ticker.
func (b *BudgetEnforcer) ResetDaily(dateKey string) error {
	current, err := b.state.BudgetDateKey()
	if err != nil {
		return fmt.Errorf("failed to read budget day: %w", err)
	}
	if current == dateKey {
		return nil
	}

	store := b.state.Store
	writes := []func() error{
		func() error { return store.SetInt(domain.KeyUsedMinutesToday, 0) },
		func() error { return store.SetInt(domain.KeyEmergencyUnlocksUsedToday, 0) },
		func() error { return store.SetBool(domain.KeyBudgetLocked, false) },
		func() error { return store.SetBool(domain.KeyEmergencyUnlockActive, false) },
		func() error { return store.Delete(domain.KeyEmergencyUnlockExpiresAt) },
		func() error { return store.Delete(domain.KeyBudgetLockedAt) },
		func() error { return store.SetInt(domain.KeyDailyLimitMinutes, int64(b.config.DailyLimitMinutes)) },
		// Date key last: a crash mid-rollover re-runs the reset on the
		// next entry point instead of leaving half-cleared counters
		// behind a fresh date.
		func() error { return store.SetString(domain.KeyBudgetDateKey, dateKey) },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return fmt.Errorf("budget rollover write failed: %w", err)
		}
	}

	b.logger.Info("daily budget reset", zap.String("date", dateKey))
	return nil
}

// AddUsage accumulates guarded-app minutes reported by the accounting
// source and derives the lock when the budget is exceeded.
func (b *BudgetEnforcer) AddUsage(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("negative usage: %d", minutes)
	}
	if err := b.rollover(); err != nil {
		return err
	}

	used, err := b.state.UsedMinutesToday()
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}
	used += minutes
	if err := b.state.Store.SetInt(domain.KeyUsedMinutesToday, int64(used)); err != nil {
		return fmt.Errorf("failed to persist usage: %w", err)
	}

	if used >= b.config.DailyLimitMinutes {
		return b.lock()
	}
	return nil
}

// RecordBudgetExceeded handles the external budget_exceeded event: the
// accounting source has decided the budget is spent, regardless of what
// our own counter says. The counter is floored at the limit so that
// re-deriving the lock after an unlock window expires reaches the same
// conclusion.
func (b *BudgetEnforcer) RecordBudgetExceeded() error {
	if err := b.rollover(); err != nil {
		return err
	}

	used, err := b.state.UsedMinutesToday()
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}
	if used < b.config.DailyLimitMinutes {
		if err := b.state.Store.SetInt(domain.KeyUsedMinutesToday, int64(b.config.DailyLimitMinutes)); err != nil {
			return fmt.Errorf("failed to persist usage: %w", err)
		}
	}
	return b.lock()
}

// Evaluate lazily re-derives the lock state at now: an expired unlock
// window is closed, and the lock is recomputed from today's usage.
// Returns whether the hard budget lock is in effect.
func (b *BudgetEnforcer) Evaluate() (bool, error) {
	if err := b.rollover(); err != nil {
		return false, err
	}
	now := b.now()

	active, err := b.state.EmergencyUnlockActive()
	if err != nil {
		return false, err
	}
	if active {
		open, err := b.state.UnlockWindowOpen(now)
		if err != nil {
			return false, err
		}
		if open {
			return false, nil
		}

		// Window expired: revert the flag and re-derive the lock.
		if err := b.state.Store.SetBool(domain.KeyEmergencyUnlockActive, false); err != nil {
			return false, err
		}
		if err := b.state.Store.Delete(domain.KeyEmergencyUnlockExpiresAt); err != nil {
			return false, err
		}
		used, err := b.state.UsedMinutesToday()
		if err != nil {
			return false, err
		}
		if used >= b.config.DailyLimitMinutes {
			if err := b.lock(); err != nil {
				return false, err
			}
			b.logger.Info("emergency unlock window expired, budget lock restored")
			return true, nil
		}
		return false, nil
	}

	return b.state.BudgetLocked()
}

// PerformEmergencyUnlock grants an unlock window if quota remains. A
// denial is a structured result, not an error: the caller surfaces
// "try again tomorrow".
func (b *BudgetEnforcer) PerformEmergencyUnlock() (domain.UnlockResult, error) {
	if err := b.rollover(); err != nil {
		return domain.UnlockResult{}, err
	}

	used, err := b.state.EmergencyUnlocksUsedToday()
	if err != nil {
		return domain.UnlockResult{}, fmt.Errorf("failed to read unlock count: %w", err)
	}
	if used >= b.config.MaxUnlocksPerDay {
		b.logger.Warn("emergency unlock denied, quota exhausted",
			zap.Int("used", used),
			zap.Int("max", b.config.MaxUnlocksPerDay))
		return domain.UnlockResult{Granted: false, RemainingToday: 0}, nil
	}

	now := b.now()
	expiresAt := now.Add(b.config.UnlockWindow)
	store := b.state.Store

	// Counter first: if the process dies mid-grant the user loses an
	// unlock rather than gaining a free one.
	if err := store.SetInt(domain.KeyEmergencyUnlocksUsedToday, int64(used+1)); err != nil {
		return domain.UnlockResult{}, err
	}
	if err := store.SetInt(domain.KeyEmergencyUnlockExpiresAt, expiresAt.Unix()); err != nil {
		return domain.UnlockResult{}, err
	}
	if err := store.SetBool(domain.KeyEmergencyUnlockActive, true); err != nil {
		return domain.UnlockResult{}, err
	}
	if err := store.SetBool(domain.KeyBudgetLocked, false); err != nil {
		return domain.UnlockResult{}, err
	}

	remaining := b.config.MaxUnlocksPerDay - used - 1
	b.logger.Info("emergency unlock granted",
		zap.Time("expires_at", expiresAt),
		zap.Int("remaining_today", remaining))
	return domain.UnlockResult{Granted: true, RemainingToday: remaining, ExpiresAt: expiresAt}, nil
}

// Snapshot returns the current budget state for status output.
func (b *BudgetEnforcer) Snapshot() (domain.BudgetState, error) {
	if err := b.rollover(); err != nil {
		return domain.BudgetState{}, err
	}

	snap := domain.BudgetState{
		DailyLimitMinutes: b.config.DailyLimitMinutes,
		MaxUnlocksPerDay:  b.config.MaxUnlocksPerDay,
	}
	var err error
	if snap.UsedMinutesToday, err = b.state.UsedMinutesToday(); err != nil {
		return snap, err
	}
	if snap.IsLocked, err = b.state.BudgetLocked(); err != nil {
		return snap, err
	}
	if snap.BudgetDateKey, err = b.state.BudgetDateKey(); err != nil {
		return snap, err
	}
	if snap.EmergencyUnlocksUsedToday, err = b.state.EmergencyUnlocksUsedToday(); err != nil {
		return snap, err
	}
	if snap.EmergencyUnlockActive, err = b.state.EmergencyUnlockActive(); err != nil {
		return snap, err
	}
	if lockedAt, ok, err := b.state.BudgetLockedAt(); err != nil {
		return snap, err
	} else if ok {
		snap.LockedAt = lockedAt
	}
	if expires, ok, err := b.state.EmergencyUnlockExpiresAt(); err != nil {
		return snap, err
	} else if ok {
		snap.EmergencyUnlockExpiresAt = expires
	}
	return snap, nil
}

func (b *BudgetEnforcer) rollover() error {
	return b.ResetDaily(domain.DateKey(b.now()))
}

func (b *BudgetEnforcer) lock() error {
	now := b.now()

	// An open unlock window keeps the lock lifted; it re-derives on expiry.
	open, err := b.state.UnlockWindowOpen(now)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	if err := b.state.Store.SetBool(domain.KeyBudgetLocked, true); err != nil {
		return fmt.Errorf("failed to set budget lock: %w", err)
	}
	if err := b.state.Store.SetInt(domain.KeyBudgetLockedAt, now.Unix()); err != nil {
		return fmt.Errorf("failed to set lock timestamp: %w", err)
	}

	b.logger.Info("budget lock raised")
	return nil
}
