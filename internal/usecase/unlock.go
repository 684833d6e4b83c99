package usecase

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// DefaultUnlockWait is the mandatory delay between phrase attestation
// and the unlock grant.
const DefaultUnlockWait = 5 * time.Minute

// UnlockFlow is the three-step emergency-unlock protocol: phrase
// attestation, mandatory wait, grant. All flow state is in-memory on
// purpose: leaving the flow for any reason (backgrounding, navigation,
// process death) discards every step, so the wait cannot be served
// passively in the background. Only the grant itself touches the
// shared store, via the budget enforcer.
//
// The wait timer is explicit state advanced by the owning screen's
// foreground ticker through Advance, never a self-rescheduling callback.
type UnlockFlow struct {
	secrets  domain.SecretStore
	enforcer *BudgetEnforcer
	logger   *zap.Logger

	waitRequired time.Duration

	phraseConfirmed bool
	waitStarted     bool
	waitRemaining   time.Duration
}

// NewUnlockFlow creates an unlock flow. waitRequired of zero selects
// the default 5 minutes.
func NewUnlockFlow(secrets domain.SecretStore, enforcer *BudgetEnforcer, waitRequired time.Duration, logger *zap.Logger) *UnlockFlow {
	if waitRequired == 0 {
		waitRequired = DefaultUnlockWait
	}
	return &UnlockFlow{
		secrets:      secrets,
		enforcer:     enforcer,
		waitRequired: waitRequired,
		logger:       logger,
	}
}

// SubmitPhrase checks the attestation phrase: byte-for-byte after
// trimming surrounding whitespace, case-sensitive, no partial credit.
func (f *UnlockFlow) SubmitPhrase(text string) bool {
	required, err := f.secrets.GetSecret(domain.SecretUnlockPhrase)
	if err != nil {
		f.logger.Error("failed to load unlock phrase", zap.Error(err))
		return false
	}

	ok := strings.TrimSpace(text) == strings.TrimSpace(required)
	f.phraseConfirmed = ok
	if !ok {
		f.logger.Info("unlock phrase rejected")
	}
	return ok
}

// StartWait begins the mandatory wait. Requires a confirmed phrase.
func (f *UnlockFlow) StartWait() error {
	if !f.phraseConfirmed {
		return fmt.Errorf("%w: wait before phrase attestation", domain.ErrInvalidTransition)
	}
	f.waitStarted = true
	f.waitRemaining = f.waitRequired
	f.logger.Info("unlock wait started", zap.Duration("required", f.waitRequired))
	return nil
}

// Advance moves the wait timer forward. Called once per second by the
// foreground screen while it stays visible.
func (f *UnlockFlow) Advance(d time.Duration) {
	if !f.waitStarted || d <= 0 {
		return
	}
	f.waitRemaining -= d
	if f.waitRemaining < 0 {
		f.waitRemaining = 0
	}
}

// WaitRemainingSeconds reports seconds left in the mandatory wait.
func (f *UnlockFlow) WaitRemainingSeconds() uint {
	if !f.waitStarted {
		return uint(f.waitRequired / time.Second)
	}
	return uint((f.waitRemaining + time.Second - 1) / time.Second)
}

// Leave abandons the flow. Backgrounding, navigating away and process
// exit all route here; every step is forfeited and the phrase must be
// re-submitted. This is the intended friction, not a bug.
func (f *UnlockFlow) Leave() {
	if f.phraseConfirmed || f.waitStarted {
		f.logger.Info("unlock flow abandoned, progress discarded")
	}
	f.phraseConfirmed = false
	f.waitStarted = false
	f.waitRemaining = 0
}

// ConfirmUnlock performs the grant once both gates are passed. The flow
// is spent after the call regardless of outcome.
func (f *UnlockFlow) ConfirmUnlock() (domain.UnlockResult, error) {
	if !f.phraseConfirmed {
		return domain.UnlockResult{}, fmt.Errorf("%w: grant before phrase attestation", domain.ErrInvalidTransition)
	}
	if !f.waitStarted || f.waitRemaining > 0 {
		return domain.UnlockResult{}, fmt.Errorf("%w: grant before mandatory wait elapsed", domain.ErrInvalidTransition)
	}

	result, err := f.enforcer.PerformEmergencyUnlock()
	f.Leave()
	return result, err
}
