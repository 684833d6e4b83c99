// Package shield decides which blocking surface, if any, a shield
// process should render. It is the one component that runs inside the
// short-lived shield-action binaries, so it only reads the shared
// store plus the single dismissal key it is allowed to write.
package shield

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// Kind enumerates the mutually exclusive shield surfaces, strongest
// first. Exactly one applies at any instant.
type Kind int

const (
	// KindNone shows nothing; the guarded app proceeds.
	KindNone Kind = iota
	// KindFriction is the dismissible friction overlay.
	KindFriction
	// KindSessionLock is the non-negotiable focus-session lock.
	KindSessionLock
	// KindBudgetLock is the daily-budget hard lock with the emergency
	// unlock entry point.
	KindBudgetLock
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFriction:
		return "friction"
	case KindSessionLock:
		return "session_lock"
	case KindBudgetLock:
		return "budget_lock"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Surface is the resolved shield decision. FrictionLevel is meaningful
// only when Kind is KindFriction; Degraded marks a fail-safe result
// produced because the shared store could not be read.
type Surface struct {
	Kind          Kind
	FrictionLevel int
	Degraded      bool
}

// Resolver evaluates shield precedence against the shared store.
type Resolver struct {
	state  domain.State
	now    func() time.Time
	logger *zap.Logger
}

func NewResolver(store domain.StateStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		state:  domain.State{Store: store},
		now:    time.Now,
		logger: logger,
	}
}

// Resolve returns the surface to render right now. Precedence is fixed:
// budget hard lock beats session lock beats friction beats nothing. A
// budget lock is suppressed only while a granted emergency unlock
// window is still open. Any store read failure resolves to the budget
// lock surface: when the state of a commitment device is unknowable,
// the device stays engaged.
func (r *Resolver) Resolve() Surface {
	now := r.now()

	locked, err := r.state.BudgetLocked()
	if err != nil {
		return r.failSafe("read budget lock", err)
	}
	if locked {
		windowOpen, err := r.state.UnlockWindowOpen(now)
		if err != nil {
			return r.failSafe("read unlock window", err)
		}
		if !windowOpen {
			return Surface{Kind: KindBudgetLock}
		}
	}

	sessionActive, err := r.state.FocusSessionActive()
	if err != nil {
		return r.failSafe("read session lock", err)
	}
	if sessionActive {
		return Surface{Kind: KindSessionLock}
	}

	level, err := r.state.FrictionLevel()
	if err != nil {
		return r.failSafe("read friction level", err)
	}
	if level > 0 {
		dismissed, err := r.state.FrictionDismissedLevel()
		if err != nil {
			return r.failSafe("read dismissed level", err)
		}
		if dismissed < level {
			return Surface{Kind: KindFriction, FrictionLevel: level}
		}
	}

	return Surface{Kind: KindNone}
}

// Dismiss acknowledges the current friction overlay so it stays hidden
// until the friction level rises again. It refuses while a hard lock is
// in force, and refuses when there is no friction surface to dismiss.
func (r *Resolver) Dismiss() error {
	surface := r.Resolve()
	switch surface.Kind {
	case KindFriction:
		// fall through to the write below
	case KindNone:
		return fmt.Errorf("dismiss: no friction surface is showing")
	default:
		return fmt.Errorf("dismiss: %s surface is not dismissible", surface.Kind)
	}

	if err := r.state.SetFrictionDismissedLevel(surface.FrictionLevel); err != nil {
		return fmt.Errorf("dismiss: record dismissal: %w", err)
	}
	r.logger.Info("friction surface dismissed",
		zap.Int("level", surface.FrictionLevel))
	return nil
}

func (r *Resolver) failSafe(during string, err error) Surface {
	r.logger.Warn("shared store unreadable, failing safe to budget lock",
		zap.String("during", during),
		zap.Error(err))
	return Surface{Kind: KindBudgetLock, Degraded: true}
}
