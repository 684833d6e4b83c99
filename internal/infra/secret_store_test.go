package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// newTestSecretStore creates an encrypted secret store in a temp
// directory with a fresh key.
func newTestSecretStore(t *testing.T) *EncryptedSecretStore {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedSecretStore(t.TempDir(), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEncryptedSecretStore_SetAndGet(t *testing.T) {
	store := newTestSecretStore(t)

	require.NoError(t, store.SetSecret("k", "v"))
	got, err := store.GetSecret("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestEncryptedSecretStore_MissingSecret(t *testing.T) {
	store := newTestSecretStore(t)

	_, err := store.GetSecret("missing")
	assert.Error(t, err)
}

func TestEncryptedSecretStore_Overwrite(t *testing.T) {
	store := newTestSecretStore(t)

	require.NoError(t, store.SetSecret("k", "old"))
	require.NoError(t, store.SetSecret("k", "new"))

	got, err := store.GetSecret("k")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestSeedUnlockPhrase(t *testing.T) {
	store := newTestSecretStore(t)

	require.NoError(t, SeedUnlockPhrase(store, ""))
	phrase, err := store.GetSecret(domain.SecretUnlockPhrase)
	require.NoError(t, err)
	assert.Equal(t, DefaultUnlockPhrase, phrase)

	// A manually stored phrase survives re-seeding without config.
	require.NoError(t, store.SetSecret(domain.SecretUnlockPhrase, "my own phrase"))
	require.NoError(t, SeedUnlockPhrase(store, ""))
	phrase, err = store.GetSecret(domain.SecretUnlockPhrase)
	require.NoError(t, err)
	assert.Equal(t, "my own phrase", phrase)
}

func TestSeedUnlockPhrase_ConfiguredPhrase(t *testing.T) {
	store := newTestSecretStore(t)

	// A configured phrase is seeded directly, bypassing the default.
	require.NoError(t, SeedUnlockPhrase(store, "configured phrase"))
	phrase, err := store.GetSecret(domain.SecretUnlockPhrase)
	require.NoError(t, err)
	assert.Equal(t, "configured phrase", phrase)

	// Changing the configured phrase replaces the stored one.
	require.NoError(t, SeedUnlockPhrase(store, "updated phrase"))
	phrase, err = store.GetSecret(domain.SecretUnlockPhrase)
	require.NoError(t, err)
	assert.Equal(t, "updated phrase", phrase)

	// Clearing the config keeps the last configured phrase.
	require.NoError(t, SeedUnlockPhrase(store, ""))
	phrase, err = store.GetSecret(domain.SecretUnlockPhrase)
	require.NoError(t, err)
	assert.Equal(t, "updated phrase", phrase)
}
