package auth

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"e621dl/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Setenv(EnvLogin, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvPassphrase, "")
}

func TestManagerStoreRetrieveDelete(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	m := NewManagerWithStores(store)

	account := &Account{Username: "fox", APIKey: "abcdefghijklmnop"}
	require.NoError(t, m.Store(account))
	assert.False(t, account.LastModified.IsZero())

	got, err := m.Retrieve("fox")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", got.APIKey)

	require.NoError(t, m.Delete("fox"))
	_, err = m.Retrieve("fox")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	err = m.Delete("fox")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	m := NewManagerWithStores(NewMockStore())

	assert.Error(t, m.Store(nil))
	assert.Error(t, m.Store(&Account{APIKey: "key"}))
	assert.Error(t, m.Store(&Account{Username: "fox"}))
}

func TestManagerStoreFallsThrough(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("locked")
	working := NewMockStore()

	m := NewManagerWithStores(broken, working)
	require.NoError(t, m.Store(&Account{Username: "fox", APIKey: "key"}))
	assert.True(t, working.Exists("fox"))

	working.StoreError = errors.New("full")
	err := m.Store(&Account{Username: "wolf", APIKey: "key"})
	assert.ErrorContains(t, err, "full")

	assert.ErrorIs(t, NewManagerWithStores().Store(&Account{Username: "a", APIKey: "b"}), ErrStoreUnavailable)
}

func TestManagerListNewestFirst(t *testing.T) {
	clearEnv(t)
	now := time.Now()
	a, b := NewMockStore(), NewMockStore()

	require.NoError(t, a.Store(&Account{Username: "old", APIKey: "k", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, a.Store(&Account{Username: "dup", APIKey: "stale", LastModified: now.Add(-2 * time.Hour)}))
	require.NoError(t, b.Store(&Account{Username: "dup", APIKey: "fresh", LastModified: now}))

	accounts, err := NewManagerWithStores(a, b).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "dup", accounts[0].Username)
	assert.Equal(t, "fresh", accounts[0].APIKey)
	assert.Equal(t, "old", accounts[1].Username)
}

func TestManagerRetrieveDefault(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	m := NewManagerWithStores(store, NewEnvironmentStore())

	_, err := m.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Username: "stored", APIKey: "k", LastModified: time.Now()}))
	got, err := m.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "stored", got.Username)

	t.Setenv(EnvLogin, "envuser")
	t.Setenv(EnvAPIKey, "envkey")
	got, err = m.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "envuser", got.Username)
}

func TestManagerApplyTo(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	require.NoError(t, store.Store(&Account{Username: "fox", APIKey: "foxkey", LastModified: time.Now()}))
	m := NewManagerWithStores(store)

	t.Run("keeps explicit credentials", func(t *testing.T) {
		api := &config.APIConfig{Login: "me", APIKey: "mine"}
		require.NoError(t, m.ApplyTo(api))
		assert.Equal(t, "me", api.Login)
		assert.Equal(t, "mine", api.APIKey)
	})

	t.Run("fills key for configured login", func(t *testing.T) {
		api := &config.APIConfig{Login: "fox"}
		require.NoError(t, m.ApplyTo(api))
		assert.Equal(t, "foxkey", api.APIKey)
	})

	t.Run("uses default account", func(t *testing.T) {
		api := &config.APIConfig{}
		require.NoError(t, m.ApplyTo(api))
		assert.Equal(t, "fox", api.Login)
	})

	t.Run("unknown login", func(t *testing.T) {
		api := &config.APIConfig{Login: "nobody"}
		assert.ErrorIs(t, m.ApplyTo(api), ErrCredentialsNotFound)
		assert.Empty(t, api.APIKey)
	})
}

func TestManagerDeleteIgnoresReadOnlyStores(t *testing.T) {
	clearEnv(t)
	store := NewMockStore()
	require.NoError(t, store.Store(&Account{Username: "fox", APIKey: "k"}))

	m := NewManagerWithStores(NewEnvironmentStore(), store)
	require.NoError(t, m.Delete("fox"))

	broken := NewMockStore()
	broken.DeleteError = errors.New("denied")
	err := NewManagerWithStores(broken).Delete("fox")
	assert.ErrorContains(t, err, "denied")
}

func TestEncryptedFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/cfg", "credentials.enc")

	store, err := NewEncryptedFileStore(fs, path, "secret")
	require.NoError(t, err)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.Store(&Account{Username: "fox", APIKey: "foxkey123456"}))
	require.NoError(t, store.Store(&Account{Username: "wolf", APIKey: "wolfkey"}))

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "foxkey123456")

	reopened, err := NewEncryptedFileStore(fs, path, "secret")
	require.NoError(t, err)
	got, err := reopened.Retrieve("fox")
	require.NoError(t, err)
	assert.Equal(t, "foxkey123456", got.APIKey)
	assert.True(t, reopened.Exists("wolf"))

	wrong, err := NewEncryptedFileStore(fs, path, "other")
	require.NoError(t, err)
	_, err = wrong.Retrieve("fox")
	assert.ErrorContains(t, err, "failed to decrypt")

	require.NoError(t, store.Delete("fox"))
	_, err = store.Retrieve("fox")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Delete("wolf"))
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete("wolf"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreRequiresPassphrase(t *testing.T) {
	_, err := NewEncryptedFileStore(afero.NewMemMapFs(), "/c/credentials.enc", "")
	assert.Error(t, err)
}

func TestResolvePassphrase(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()

	first, err := ResolvePassphrase(fs, "/cfg")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := ResolvePassphrase(fs, "/cfg")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	t.Setenv(EnvPassphrase, "from-env")
	got, err := ResolvePassphrase(fs, "/cfg")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestEnvironmentStore(t *testing.T) {
	clearEnv(t)
	env := NewEnvironmentStore()

	_, err := env.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(EnvLogin, "fox")
	t.Setenv(EnvAPIKey, "key")

	got, err := env.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "fox", got.Username)

	_, err = env.Retrieve("wolf")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.True(t, env.Exists("fox"))

	accounts, err := env.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	assert.ErrorIs(t, env.Store(got), ErrStoreUnavailable)
	assert.ErrorIs(t, env.Delete("fox"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "wolf", APIKey: "w"}))
	require.NoError(t, store.Store(&Account{Username: "fox", APIKey: "f"}))
	require.NoError(t, store.Store(&Account{Username: "fox", APIKey: "f2"}))

	got, err := store.Retrieve("fox")
	require.NoError(t, err)
	assert.Equal(t, "f2", got.APIKey)

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "fox", accounts[0].Username)

	require.NoError(t, store.Delete("fox"))
	assert.False(t, store.Exists("fox"))
	assert.ErrorIs(t, store.Delete("fox"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "wolf", accounts[0].Username)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "fox", APIKey: "abcdefghijklmnop"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, "fox", sanitized.Username)
	assert.Equal(t, "abcd...mnop", sanitized.APIKey)
	assert.Equal(t, "abcdefghijklmnop", account.APIKey)
	assert.Nil(t, SanitizeAccount(nil))
	assert.Equal(t, "********", MaskString("short"))
}

func TestShowAPIKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowAPIKeyGuide(&buf)
	assert.Contains(t, buf.String(), "Manage API Access")
	assert.Contains(t, buf.String(), EnvAPIKey)
}

func TestReadSecretFromPipe(t *testing.T) {
	var out bytes.Buffer

	got, err := ReadSecret(strings.NewReader("  key123  \n"), &out, "API key: ")
	require.NoError(t, err)
	assert.Equal(t, "key123", got)
	assert.Equal(t, "API key: ", out.String())

	got, err = ReadLine(strings.NewReader("fox"), &out, "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "fox", got)

	_, err = ReadLine(strings.NewReader(""), &out, "Username: ")
	assert.Error(t, err)
}
