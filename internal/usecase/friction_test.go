package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frictionlabs/frictiond/internal/domain"
)

func newTestFrictionEngine(store domain.StateStore) *FrictionEngine {
	engine := NewFrictionEngine(store, []int{15, 30, 45, 60}, testLogger())
	engine.now = newFakeClock().Now
	return engine
}

func currentLevel(t *testing.T, store domain.StateStore) int {
	t.Helper()
	level, err := domain.State{Store: store}.FrictionLevel()
	require.NoError(t, err)
	return level
}

func TestFrictionEngine_EscalatesOnThreshold(t *testing.T) {
	store := newMemStore()
	engine := newTestFrictionEngine(store)

	require.NoError(t, engine.OnUsageThresholdReached(1))
	assert.Equal(t, 1, currentLevel(t, store))

	require.NoError(t, engine.OnUsageThresholdReached(2))
	assert.Equal(t, 2, currentLevel(t, store))
}

func TestFrictionEngine_DuplicateDeliveryIsNoOp(t *testing.T) {
	store := newMemStore()
	engine := newTestFrictionEngine(store)

	require.NoError(t, engine.OnUsageThresholdReached(2))
	require.NoError(t, engine.OnUsageThresholdReached(2))
	assert.Equal(t, 2, currentLevel(t, store))
}

func TestFrictionEngine_OutOfOrderDeliveryNeverRegresses(t *testing.T) {
	store := newMemStore()
	engine := newTestFrictionEngine(store)

	// Events arrive 1, 3, then a late 2: the level implied by the
	// latest valid event is 3 and must stick.
	require.NoError(t, engine.OnUsageThresholdReached(1))
	require.NoError(t, engine.OnUsageThresholdReached(3))
	require.NoError(t, engine.OnUsageThresholdReached(2))
	assert.Equal(t, 3, currentLevel(t, store))
}

func TestFrictionEngine_OutOfRangeLevelRejected(t *testing.T) {
	engine := newTestFrictionEngine(newMemStore())

	assert.Error(t, engine.OnUsageThresholdReached(-1))
	assert.Error(t, engine.OnUsageThresholdReached(5))
}

func TestFrictionEngine_IntervalEndResets(t *testing.T) {
	store := newMemStore()
	engine := newTestFrictionEngine(store)
	state := domain.State{Store: store}

	require.NoError(t, engine.OnUsageThresholdReached(3))
	require.NoError(t, state.SetFrictionDismissedLevel(3))

	// Budget keys are not friction's to clear.
	require.NoError(t, store.SetBool(domain.KeyBudgetLocked, true))

	require.NoError(t, engine.OnIntervalEnd())

	assert.Equal(t, 0, currentLevel(t, store))
	dismissed, err := state.FrictionDismissedLevel()
	require.NoError(t, err)
	assert.Equal(t, 0, dismissed)

	locked, err := state.BudgetLocked()
	require.NoError(t, err)
	assert.True(t, locked)

	// A fresh interval escalates from zero again.
	require.NoError(t, engine.OnUsageThresholdReached(1))
	assert.Equal(t, 1, currentLevel(t, store))
}

func TestFrictionEngine_WillReachThresholdNeverSuppresses(t *testing.T) {
	engine := newTestFrictionEngine(newMemStore())

	assert.True(t, engine.OnWillReachThreshold("threshold_1"))
	assert.True(t, engine.OnWillReachThreshold("threshold_99"))
	assert.True(t, engine.OnWillReachThreshold("budget_exceeded"))
}

func TestParseThresholdLevel(t *testing.T) {
	level, err := ParseThresholdLevel("threshold_3")
	require.NoError(t, err)
	assert.Equal(t, 3, level)

	_, err = ParseThresholdLevel("budget_exceeded")
	assert.Error(t, err)

	_, err = ParseThresholdLevel("threshold_x")
	assert.Error(t, err)
}
