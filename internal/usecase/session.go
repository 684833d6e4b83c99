package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// SessionController runs the single active focus session: countdown,
// pause/resume, background detection with graduated consequences, and
// terminal accounting. Exactly one session may be active; starting
// another is rejected, not queued.
//
// The countdown is explicit state advanced by Tick, one second per
// call, driven by exactly one timer at a time. EndSession is the single
// authoritative termination entry point; every terminal path funnels
// through it or the auto-completion in Tick.
type SessionController struct {
	mu sync.Mutex

	state  domain.State
	ledger domain.GamificationLedger
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	status  domain.SessionStatus
	current *domain.Session
}

// NewSessionController creates an idle controller over the shared store.
func NewSessionController(store domain.StateStore, ledger domain.GamificationLedger, logger *zap.Logger) *SessionController {
	return &SessionController{
		state:  domain.State{Store: store},
		ledger: ledger,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
		status: domain.SessionIdle,
	}
}

// StartSession begins a focus session. Legal only from Idle. Mirrors
// focusSessionActive into the shared store, which is what makes the
// shield non-negotiable for the session's duration.
func (c *SessionController) StartSession(task string, durationMinutes int) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionIdle {
		return nil, domain.InvalidTransitionError("startSession", c.status)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("session duration must be positive, got %d", durationMinutes)
	}

	c.current = &domain.Session{
		ID:                     c.newID(),
		Task:                   task,
		StartTime:              c.now(),
		PlannedDurationMinutes: durationMinutes,
		Status:                 domain.SessionActive,
	}
	c.status = domain.SessionActive

	if err := c.state.SetFocusSessionActive(true); err != nil {
		// The session still runs; the shield just lags behind. Missing
		// writes degrade to more permissive, never to corruption.
		c.logger.Warn("failed to mirror session lock to store", zap.Error(err))
	}

	c.logger.Info("focus session started",
		zap.String("id", c.current.ID),
		zap.String("task", task),
		zap.Int("minutes", durationMinutes))
	return c.snapshotLocked(), nil
}

// Tick advances elapsed time by one second. The caller owns the cadence
// and calls only while the session screen is foregrounded. Ticks while
// Paused are no-ops; a tick that reaches the planned duration completes
// the session.
func (c *SessionController) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case domain.SessionPaused:
		return nil
	case domain.SessionActive:
	default:
		return domain.InvalidTransitionError("tick", c.status)
	}

	c.current.ElapsedSeconds++
	if c.current.ElapsedSeconds >= c.current.PlannedSeconds() {
		c.finishLocked(domain.SessionCompleted)
	}
	return nil
}

// PauseSession suspends tick accounting. Legal only from Active.
func (c *SessionController) PauseSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionActive {
		return domain.InvalidTransitionError("pauseSession", c.status)
	}
	c.status = domain.SessionPaused
	c.current.Status = domain.SessionPaused
	c.logger.Info("session paused", zap.String("id", c.current.ID))
	return nil
}

// ResumeSession resumes from Paused.
func (c *SessionController) ResumeSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionPaused {
		return domain.InvalidTransitionError("resumeSession", c.status)
	}
	c.status = domain.SessionActive
	c.current.Status = domain.SessionActive
	c.logger.Info("session resumed", zap.String("id", c.current.ID))
	return nil
}

// RecordAppLeft notes that the app was backgrounded mid-session. Every
// leave counts toward tabLeavesCount no matter how brief it turns out
// to be.
func (c *SessionController) RecordAppLeft() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionActive {
		return domain.InvalidTransitionError("recordAppLeft", c.status)
	}
	if c.openIntervalLocked() != nil {
		return domain.InvalidTransitionError("recordAppLeft", c.status)
	}

	c.current.TabLeavesCount++
	c.current.AwayIntervals = append(c.current.AwayIntervals, domain.AwayInterval{LeftAt: c.now()})
	c.logger.Info("app left during session",
		zap.String("id", c.current.ID),
		zap.Int("leaves", c.current.TabLeavesCount))
	return nil
}

// RecordAppReturned closes the open away interval and applies exactly
// one consequence from the classification table. A force-end abandons
// the session through the same terminal path as EndSession.
func (c *SessionController) RecordAppReturned() (domain.Consequence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionActive {
		return domain.ConsequenceNone, domain.InvalidTransitionError("recordAppReturned", c.status)
	}
	interval := c.openIntervalLocked()
	if interval == nil {
		return domain.ConsequenceNone, domain.InvalidTransitionError("recordAppReturned", c.status)
	}

	returnedAt := c.now()
	interval.ReturnedAt = &returnedAt
	away := returnedAt.Sub(interval.LeftAt)

	consequence := domain.ClassifyAway(away, c.current.TabLeavesCount)
	switch consequence {
	case domain.ConsequenceUrgeResisted:
		c.current.UrgesResisted++
	case domain.ConsequenceAbandon:
		c.finishLocked(domain.SessionAbandoned)
	}

	c.logger.Info("app returned during session",
		zap.Duration("away", away),
		zap.String("consequence", consequence.String()))
	return consequence, nil
}

// EndSession terminates the session. Legal from Active or Paused. The
// surrounding UI routes voluntary exits through a cooldown interstitial
// before calling this with completed=false; the controller itself does
// not gate on that.
func (c *SessionController) EndSession(completed bool) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.SessionActive && c.status != domain.SessionPaused {
		return nil, domain.InvalidTransitionError("endSession", c.status)
	}

	status := domain.SessionAbandoned
	if completed {
		status = domain.SessionCompleted
	}
	finished := c.finishLocked(status)
	return finished, nil
}

// Status returns the lifecycle state and a snapshot of the active
// session, or nil when idle.
func (c *SessionController) Status() (domain.SessionStatus, *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.snapshotLocked()
}

// finishLocked writes the terminal state once, clears the session lock,
// and hands the record to the gamification ledger. The controller then
// returns to Idle and never touches the record again.
func (c *SessionController) finishLocked(status domain.SessionStatus) *domain.Session {
	c.current.Status = status
	c.current.EndedAt = c.now()

	if err := c.state.SetFocusSessionActive(false); err != nil {
		c.logger.Warn("failed to clear session lock in store", zap.Error(err))
	}

	finished := c.snapshotLocked()
	if err := c.ledger.RecordOutcome(finished); err != nil {
		c.logger.Error("failed to record session outcome", zap.Error(err))
	}

	c.logger.Info("session finished",
		zap.String("id", c.current.ID),
		zap.String("status", string(status)),
		zap.Int("elapsed_seconds", c.current.ElapsedSeconds),
		zap.Int("urges_resisted", c.current.UrgesResisted))

	c.status = domain.SessionIdle
	c.current = nil
	return finished
}

func (c *SessionController) openIntervalLocked() *domain.AwayInterval {
	if c.current == nil || len(c.current.AwayIntervals) == 0 {
		return nil
	}
	last := &c.current.AwayIntervals[len(c.current.AwayIntervals)-1]
	if last.ReturnedAt != nil {
		return nil
	}
	return last
}

// snapshotLocked returns a copy of the current session so callers never
// hold a reference the controller might mutate.
func (c *SessionController) snapshotLocked() *domain.Session {
	if c.current == nil {
		return nil
	}
	snap := *c.current
	snap.AwayIntervals = append([]domain.AwayInterval(nil), c.current.AwayIntervals...)
	return &snap
}
