package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frictionlabs/frictiond/internal/domain"
)

func newTestLedger(t *testing.T) *BoltLedger {
	t.Helper()
	ledger, err := NewBoltLedger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func finishedSession(id string, status domain.SessionStatus, endedAt time.Time) *domain.Session {
	return &domain.Session{
		ID:                     id,
		Task:                   "Write",
		StartTime:              endedAt.Add(-25 * time.Minute),
		PlannedDurationMinutes: 25,
		ElapsedSeconds:         1500,
		Status:                 status,
		EndedAt:                endedAt,
	}
}

func TestBoltLedger_RejectsNonTerminalSessions(t *testing.T) {
	ledger := newTestLedger(t)

	err := ledger.RecordOutcome(&domain.Session{ID: "s1", Status: domain.SessionActive})
	assert.Error(t, err)
}

func TestBoltLedger_CompletedSessionAwardsXP(t *testing.T) {
	ledger := newTestLedger(t)
	now := time.Now()

	require.NoError(t, ledger.RecordOutcome(finishedSession("s1", domain.SessionCompleted, now)))

	summary, err := ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 25, summary.TotalXP)
	assert.Equal(t, 1, summary.SessionsCompleted)
	assert.Equal(t, 1, summary.StreakDays)
	assert.Contains(t, summary.Badges, "first_session")
}

func TestBoltLedger_AbandonedSessionLeavesStreakAlone(t *testing.T) {
	ledger := newTestLedger(t)
	now := time.Now()

	require.NoError(t, ledger.RecordOutcome(finishedSession("s1", domain.SessionCompleted, now)))
	require.NoError(t, ledger.RecordOutcome(finishedSession("s2", domain.SessionAbandoned, now)))

	summary, err := ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StreakDays)
	assert.Equal(t, 1, summary.SessionsAbandoned)
	assert.Equal(t, 25, summary.TotalXP)
}

func TestBoltLedger_StreakAdvancesOncePerDay(t *testing.T) {
	ledger := newTestLedger(t)
	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)

	require.NoError(t, ledger.RecordOutcome(finishedSession("s1", domain.SessionCompleted, day)))
	require.NoError(t, ledger.RecordOutcome(finishedSession("s2", domain.SessionCompleted, day.Add(2*time.Hour))))

	summary, err := ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StreakDays)

	// Next calendar day extends the streak; a gap resets it.
	require.NoError(t, ledger.RecordOutcome(finishedSession("s3", domain.SessionCompleted, day.AddDate(0, 0, 1))))
	summary, err = ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StreakDays)

	require.NoError(t, ledger.RecordOutcome(finishedSession("s4", domain.SessionCompleted, day.AddDate(0, 0, 5))))
	summary, err = ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StreakDays)
}

func TestBoltLedger_WeekStreakBadge(t *testing.T) {
	ledger := newTestLedger(t)
	day := time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local)

	for i := 0; i < 7; i++ {
		s := finishedSession(time.Duration(i).String(), domain.SessionCompleted, day.AddDate(0, 0, i))
		require.NoError(t, ledger.RecordOutcome(s))
	}

	summary, err := ledger.Summary()
	require.NoError(t, err)
	assert.Equal(t, 7, summary.StreakDays)
	assert.Contains(t, summary.Badges, "week_streak")
}

func TestBoltLedger_SessionRecordRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	now := time.Now()

	session := finishedSession("s1", domain.SessionCompleted, now)
	session.UrgesResisted = 2
	session.TabLeavesCount = 2
	require.NoError(t, ledger.RecordOutcome(session))

	got, err := ledger.GetSession("s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Write", got.Task)
	assert.Equal(t, 2, got.UrgesResisted)
	assert.Equal(t, domain.SessionCompleted, got.Status)

	missing, err := ledger.GetSession("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
