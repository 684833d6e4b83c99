package domain

// StateStore is the shared, unsynchronized key/value store visible to
// the main application and to every extension process. It is the only
// communication channel between them.
//
// There are no cross-key transactions: a reader may observe one field
// of a multi-field update without the other. Writers therefore treat
// every multi-field update as eventually consistent, and readers fail
// safe (prefer showing a lock) when related fields disagree.
//
// Get methods return ok=false when the key is absent. An error means
// the backing store itself could not be read; consumers on the shield
// path treat that as "locked".
type StateStore interface {
	GetInt(key string) (v int64, ok bool, err error)
	GetBool(key string) (v bool, ok bool, err error)
	GetString(key string) (v string, ok bool, err error)

	// Set methods are fire-and-forget from the caller's perspective:
	// a failed write degrades to more permissive behavior and is never
	// retried.
	SetInt(key string, v int64) error
	SetBool(key string, v bool) error
	SetString(key string, v string) error

	Delete(key string) error
}

// GamificationLedger consumes finished session records. XP, streaks and
// badges are its concern; the engine only hands over the record once,
// when the session reaches a terminal state.
type GamificationLedger interface {
	RecordOutcome(session *Session) error
	Summary() (*LedgerSummary, error)
	Close() error
}

// SecretUnlockPhrase is the secret-store key holding the emergency
// unlock attestation phrase. It lives in encrypted storage so the
// friction cannot be removed by editing a plain config file.
const SecretUnlockPhrase = "unlock_phrase"

// SecretStore provides encrypted persistent storage for values that
// must not be user-editable, such as the emergency-unlock attestation
// phrase.
type SecretStore interface {
	GetSecret(key string) (string, error)
	SetSecret(key, value string) error
	Close() error
}

// KeyProvider abstracts the source of the secret-store encryption key.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}

// ProcessManager handles OS process liveness checks.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}
