package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/frictionlabs/frictiond/internal/domain"
)

const (
	ledgerDBName   = "ledger.db"
	bucketSessions = "finished_sessions"
	bucketSummary  = "summary"
	summaryKey     = "current"
)

// XP and badge rules.
const (
	badgeFirstSession   = "first_session"
	badgeWeekStreak     = "week_streak"
	badgeTenCompletions = "ten_completions"

	weekStreakDays      = 7
	tenCompletionsCount = 10
)

// BoltLedger implements domain.GamificationLedger on top of bbolt.
// Finished sessions are append-only; the summary record accumulates XP,
// streak and badges. The ledger is the sole owner of a session record
// after the controller hands it over.
type BoltLedger struct {
	db *bbolt.DB
}

// NewBoltLedger opens (or creates) the ledger database in dataDir.
func NewBoltLedger(dataDir string) (*BoltLedger, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, ledgerDBName), 0600, &bbolt.Options{
		Timeout: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketSessions, bucketSummary} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// RecordOutcome stores a terminal session and updates XP, streak and
// badges. Completed sessions award their planned minutes as XP; an
// abandoned session is recorded but leaves the streak untouched.
func (l *BoltLedger) RecordOutcome(session *domain.Session) error {
	if session == nil || !session.Status.Terminal() {
		return fmt.Errorf("ledger only accepts terminal sessions")
	}

	return l.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketSessions)).Put([]byte(session.ID), data); err != nil {
			return err
		}

		summary, err := readSummary(tx)
		if err != nil {
			return err
		}
		applyOutcome(summary, session)
		return writeSummary(tx, summary)
	})
}

// Summary returns the aggregate gamification state.
func (l *BoltLedger) Summary() (*domain.LedgerSummary, error) {
	var summary *domain.LedgerSummary
	err := l.db.View(func(tx *bbolt.Tx) error {
		var err error
		summary, err = readSummary(tx)
		return err
	})
	return summary, err
}

// GetSession returns a finished session by ID, or nil if unknown.
func (l *BoltLedger) GetSession(id string) (*domain.Session, error) {
	var session *domain.Session
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketSessions)).Get([]byte(id))
		if data == nil {
			return nil
		}
		session = &domain.Session{}
		return json.Unmarshal(data, session)
	})
	return session, err
}

// Close releases the database.
func (l *BoltLedger) Close() error {
	return l.db.Close()
}

func readSummary(tx *bbolt.Tx) (*domain.LedgerSummary, error) {
	data := tx.Bucket([]byte(bucketSummary)).Get([]byte(summaryKey))
	if data == nil {
		return &domain.LedgerSummary{}, nil
	}
	var summary domain.LedgerSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func writeSummary(tx *bbolt.Tx, summary *domain.LedgerSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketSummary)).Put([]byte(summaryKey), data)
}

// applyOutcome folds one terminal session into the summary.
func applyOutcome(summary *domain.LedgerSummary, session *domain.Session) {
	if session.Status == domain.SessionAbandoned {
		summary.SessionsAbandoned++
		return
	}

	summary.SessionsCompleted++
	summary.TotalXP += session.PlannedDurationMinutes

	endedAt := session.EndedAt
	if endedAt.IsZero() {
		endedAt = session.StartTime
	}
	day := domain.DateKey(endedAt)
	yesterday := domain.DateKey(endedAt.AddDate(0, 0, -1))

	switch summary.LastCompletedDay {
	case day:
		// Streak advances at most once per day.
	case yesterday:
		summary.StreakDays++
	default:
		summary.StreakDays = 1
	}
	summary.LastCompletedDay = day

	grantBadge(summary, badgeFirstSession, summary.SessionsCompleted >= 1)
	grantBadge(summary, badgeWeekStreak, summary.StreakDays >= weekStreakDays)
	grantBadge(summary, badgeTenCompletions, summary.SessionsCompleted >= tenCompletionsCount)
}

func grantBadge(summary *domain.LedgerSummary, badge string, earned bool) {
	if !earned {
		return
	}
	for _, b := range summary.Badges {
		if b == badge {
			return
		}
	}
	summary.Badges = append(summary.Badges, badge)
}

// Ensure BoltLedger implements domain.GamificationLedger.
var _ domain.GamificationLedger = (*BoltLedger)(nil)
