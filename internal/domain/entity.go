// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// FrictionState is the current escalation stage for guarded apps.
// Level is monotonic non-decreasing within one continuous usage interval
// and resets to zero only at an interval boundary.
type FrictionState struct {
	Level       int
	LastUpdated time.Time
}

// BudgetState mirrors the daily budget bookkeeping shared with the
// shield processes. All fields live as flat primitive keys in the
// shared state store; this struct is a convenience snapshot.
type BudgetState struct {
	DailyLimitMinutes         int
	UsedMinutesToday          int
	IsLocked                  bool
	LockedAt                  time.Time
	BudgetDateKey             string // local calendar day, "2006-01-02"
	EmergencyUnlocksUsedToday int
	MaxUnlocksPerDay          int
	EmergencyUnlockActive     bool
	EmergencyUnlockExpiresAt  time.Time
}

// SessionStatus is the lifecycle state of a focus session.
type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the status is a final one.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// AwayInterval records a span during which the app was backgrounded
// while a session was active. ReturnedAt is nil while the interval is
// still open.
type AwayInterval struct {
	LeftAt     time.Time  `json:"left_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// Session is a single focus session record. It is mutated only by the
// session controller; once a terminal status is written the record is
// handed to the gamification ledger and never touched again.
type Session struct {
	ID                     string         `json:"id"`
	Task                   string         `json:"task"`
	StartTime              time.Time      `json:"start_time"`
	PlannedDurationMinutes int            `json:"planned_duration_minutes"`
	ElapsedSeconds         int            `json:"elapsed_seconds"`
	TabLeavesCount         int            `json:"tab_leaves_count"`
	UrgesResisted          int            `json:"urges_resisted"`
	AwayIntervals          []AwayInterval `json:"away_intervals,omitempty"`
	Status                 SessionStatus  `json:"status"`
	EndedAt                time.Time      `json:"ended_at,omitempty"`
}

// PlannedSeconds returns the planned duration in seconds.
func (s *Session) PlannedSeconds() int {
	return s.PlannedDurationMinutes * 60
}

// UnlockResult is the structured outcome of an emergency unlock grant
// attempt. A denial is a normal result, not an error.
type UnlockResult struct {
	Granted        bool
	RemainingToday int
	ExpiresAt      time.Time
}

// LedgerSummary is the aggregate view the gamification ledger exposes.
type LedgerSummary struct {
	TotalXP           int      `json:"total_xp"`
	StreakDays        int      `json:"streak_days"`
	LastCompletedDay  string   `json:"last_completed_day"` // "2006-01-02"
	SessionsCompleted int      `json:"sessions_completed"`
	SessionsAbandoned int      `json:"sessions_abandoned"`
	Badges            []string `json:"badges,omitempty"`
}

// Threshold event names delivered by the usage-accounting collaborator.
const (
	EventBudgetExceeded       = "budget_exceeded"
	EventTextThresholdReached = "text_threshold_reached"
	EventThresholdPrefix      = "threshold_"
)

// DateKey formats a time as the local calendar day used for budget and
// streak bookkeeping.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
