package usecase

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// memStore implements domain.StateStore in memory for unit tests.
// failReads simulates a backing store that cannot be read.
type memStore struct {
	values    map[string]any
	failReads bool
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]any)}
}

var errStoreUnavailable = errors.New("store unavailable")

func (m *memStore) GetInt(key string) (int64, bool, error) {
	if m.failReads {
		return 0, false, errStoreUnavailable
	}
	v, ok := m.values[key].(int64)
	return v, ok, nil
}

func (m *memStore) GetBool(key string) (bool, bool, error) {
	if m.failReads {
		return false, false, errStoreUnavailable
	}
	v, ok := m.values[key].(bool)
	return v, ok, nil
}

func (m *memStore) GetString(key string) (string, bool, error) {
	if m.failReads {
		return "", false, errStoreUnavailable
	}
	v, ok := m.values[key].(string)
	return v, ok, nil
}

func (m *memStore) SetInt(key string, v int64) error    { m.values[key] = v; return nil }
func (m *memStore) SetBool(key string, v bool) error    { m.values[key] = v; return nil }
func (m *memStore) SetString(key string, v string) error { m.values[key] = v; return nil }
func (m *memStore) Delete(key string) error             { delete(m.values, key); return nil }

// mockLedger records handed-over sessions.
type mockLedger struct {
	outcomes []*domain.Session
	err      error
}

func (m *mockLedger) RecordOutcome(s *domain.Session) error {
	if m.err != nil {
		return m.err
	}
	m.outcomes = append(m.outcomes, s)
	return nil
}

func (m *mockLedger) Summary() (*domain.LedgerSummary, error) {
	return &domain.LedgerSummary{}, nil
}

func (m *mockLedger) Close() error { return nil }

// mockSecrets implements domain.SecretStore over a map.
type mockSecrets struct {
	values map[string]string
}

func newMockSecrets(phrase string) *mockSecrets {
	return &mockSecrets{values: map[string]string{domain.SecretUnlockPhrase: phrase}}
}

func (m *mockSecrets) GetSecret(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func (m *mockSecrets) SetSecret(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mockSecrets) Close() error { return nil }

// fakeClock provides a controllable now() for engines under test.
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

var _ domain.StateStore = (*memStore)(nil)
var _ domain.GamificationLedger = (*mockLedger)(nil)
var _ domain.SecretStore = (*mockSecrets)(nil)
