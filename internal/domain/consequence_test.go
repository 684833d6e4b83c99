package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAway_Buckets(t *testing.T) {
	tests := []struct {
		name   string
		away   time.Duration
		leaves int
		want   Consequence
	}{
		{"glance below 5s", 4900 * time.Millisecond, 1, ConsequenceNone},
		{"glance on fifth leave still negligible", 2 * time.Second, 5, ConsequenceNone},
		{"exactly 5s is an urge", 5 * time.Second, 1, ConsequenceUrgeResisted},
		{"10s is an urge", 10 * time.Second, 1, ConsequenceUrgeResisted},
		{"short leave ignores leave count", 10 * time.Second, 7, ConsequenceUrgeResisted},
		{"just under 30s is an urge", 29*time.Second + 999*time.Millisecond, 2, ConsequenceUrgeResisted},
		{"exactly 30s first leave warns", 30 * time.Second, 1, ConsequenceSoftWarning},
		{"45s second leave warns", 45 * time.Second, 2, ConsequenceSoftWarning},
		{"45s third leave abandons", 45 * time.Second, 3, ConsequenceAbandon},
		{"exactly 60s abandons", 60 * time.Second, 1, ConsequenceAbandon},
		{"long absence abandons", 5 * time.Minute, 1, ConsequenceAbandon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyAway(tt.away, tt.leaves)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsequence_String(t *testing.T) {
	assert.Equal(t, "none", ConsequenceNone.String())
	assert.Equal(t, "urge_resisted", ConsequenceUrgeResisted.String())
	assert.Equal(t, "soft_warning", ConsequenceSoftWarning.String())
	assert.Equal(t, "abandon", ConsequenceAbandon.String())
}

func TestSessionStatus_Terminal(t *testing.T) {
	assert.False(t, SessionIdle.Terminal())
	assert.False(t, SessionActive.Terminal())
	assert.False(t, SessionPaused.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionAbandoned.Terminal())
}
