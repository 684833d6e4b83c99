package domain

import "time"

// Shared state store keys. Names are stable across processes; the
// shield extension binaries hardcode the same strings.
//
// Ownership: friction keys belong to the friction engine, budget keys
// to the budget enforcer, session keys to the session controller, and
// monitor keys to the monitor daemon. Shield processes only ever write
// KeyFrictionDismissedLevel.
const (
	KeyCurrentFrictionLevel   = "currentFrictionLevel"
	KeyFrictionUpdatedAt      = "frictionUpdatedAt"
	KeyFrictionDismissedLevel = "frictionDismissedLevel"

	KeyBudgetLocked              = "budgetLocked"
	KeyBudgetLockedAt            = "budgetLockedAt"
	KeyBudgetDateKey             = "budgetDateKey"
	KeyUsedMinutesToday          = "usedMinutesToday"
	KeyDailyLimitMinutes         = "dailyLimitMinutes"
	KeyEmergencyUnlocksUsedToday = "emergencyUnlocksUsedToday"
	KeyEmergencyUnlockActive     = "emergencyUnlockActive"
	KeyEmergencyUnlockExpiresAt  = "emergencyUnlockExpiresAt"

	KeyFocusSessionActive = "focusSessionActive"

	KeyProsocialEnabled              = "prosocialEnabled"
	KeyProsocialTextThresholdReached = "prosocialTextThresholdReached"

	KeyMonitorPID       = "monitorPID"
	KeyMonitorHeartbeat = "monitorHeartbeat"
)

// State is the typed accessor layer over the shared store. Every getter
// documents its safe default for an absent key; a store read error is
// propagated so shield-path callers can fail safe to "locked".
type State struct {
	Store StateStore
}

// FrictionLevel returns the current friction level. Absent means 0.
func (s State) FrictionLevel() (int, error) {
	v, ok, err := s.Store.GetInt(KeyCurrentFrictionLevel)
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}

// SetFrictionLevel persists the friction level and its update time.
func (s State) SetFrictionLevel(level int, now time.Time) error {
	if err := s.Store.SetInt(KeyCurrentFrictionLevel, int64(level)); err != nil {
		return err
	}
	return s.Store.SetInt(KeyFrictionUpdatedAt, now.Unix())
}

// FrictionDismissedLevel returns the highest friction level the user
// has dismissed this interval. Absent means none dismissed.
func (s State) FrictionDismissedLevel() (int, error) {
	v, ok, err := s.Store.GetInt(KeyFrictionDismissedLevel)
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}

// SetFrictionDismissedLevel records a shield dismissal. This is the one
// key a shield-action process is allowed to write.
func (s State) SetFrictionDismissedLevel(level int) error {
	return s.Store.SetInt(KeyFrictionDismissedLevel, int64(level))
}

// BudgetLocked reports the hard daily-budget lock. Absent means unlocked.
func (s State) BudgetLocked() (bool, error) {
	v, ok, err := s.Store.GetBool(KeyBudgetLocked)
	if err != nil || !ok {
		return false, err
	}
	return v, nil
}

// BudgetLockedAt returns when the budget lock was raised. The zero time
// with ok=false means the timestamp was never written or lags the lock
// flag; readers tolerate that.
func (s State) BudgetLockedAt() (time.Time, bool, error) {
	v, ok, err := s.Store.GetInt(KeyBudgetLockedAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(v, 0), true, nil
}

// BudgetDateKey returns the day the budget counters belong to.
// Absent means no budget day has been initialized yet.
func (s State) BudgetDateKey() (string, error) {
	v, _, err := s.Store.GetString(KeyBudgetDateKey)
	return v, err
}

// UsedMinutesToday returns accumulated guarded-app minutes. Absent means 0.
func (s State) UsedMinutesToday() (int, error) {
	v, ok, err := s.Store.GetInt(KeyUsedMinutesToday)
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}

// EmergencyUnlocksUsedToday returns the unlock counter. Absent means 0.
func (s State) EmergencyUnlocksUsedToday() (int, error) {
	v, ok, err := s.Store.GetInt(KeyEmergencyUnlocksUsedToday)
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}

// EmergencyUnlockActive reports whether an unlock window was granted.
// Absent means inactive. Callers must still check the expiry: the two
// keys are written separately and may be observed out of step.
func (s State) EmergencyUnlockActive() (bool, error) {
	v, ok, err := s.Store.GetBool(KeyEmergencyUnlockActive)
	if err != nil || !ok {
		return false, err
	}
	return v, nil
}

// EmergencyUnlockExpiresAt returns the end of the unlock window.
func (s State) EmergencyUnlockExpiresAt() (time.Time, bool, error) {
	v, ok, err := s.Store.GetInt(KeyEmergencyUnlockExpiresAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(v, 0), true, nil
}

// FocusSessionActive reports the session hard lock. Absent means no
// session is running.
func (s State) FocusSessionActive() (bool, error) {
	v, ok, err := s.Store.GetBool(KeyFocusSessionActive)
	if err != nil || !ok {
		return false, err
	}
	return v, nil
}

// SetFocusSessionActive mirrors the session lock to the store so shield
// processes can render a non-negotiable lock during a session.
func (s State) SetFocusSessionActive(active bool) error {
	return s.Store.SetBool(KeyFocusSessionActive, active)
}

// ProsocialEnabled reports whether prosocial prompts are configured on.
// Absent means disabled.
func (s State) ProsocialEnabled() (bool, error) {
	v, ok, err := s.Store.GetBool(KeyProsocialEnabled)
	if err != nil || !ok {
		return false, err
	}
	return v, nil
}

// ProsocialTextThresholdReached reports whether the prosocial texting
// allowance has been used up today. Absent means not reached.
func (s State) ProsocialTextThresholdReached() (bool, error) {
	v, ok, err := s.Store.GetBool(KeyProsocialTextThresholdReached)
	if err != nil || !ok {
		return false, err
	}
	return v, nil
}

// UnlockWindowOpen reports whether a granted emergency unlock window is
// still in effect at now. It is the lazy expiry check: no process keeps
// a timer across the window, the flag simply stops counting once the
// expiry passes.
func (s State) UnlockWindowOpen(now time.Time) (bool, error) {
	active, err := s.EmergencyUnlockActive()
	if err != nil || !active {
		return false, err
	}
	expires, ok, err := s.EmergencyUnlockExpiresAt()
	if err != nil {
		return false, err
	}
	if !ok {
		// Active flag without an expiry is a partial write; treat the
		// window as closed so the stricter lock state wins.
		return false, nil
	}
	return now.Before(expires), nil
}
