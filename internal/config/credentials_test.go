package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_RoundTrip(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credentials"))

	key, err := store.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, store.StoreAPIKey("xai-secret"))
	key, err = store.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "xai-secret", key)

	require.NoError(t, store.ClearAPIKey())
	key, err = store.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)

	// Clearing twice is fine.
	require.NoError(t, store.ClearAPIKey())
}

func TestCredentialStore_FileMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "credentials")
	store := NewCredentialStore(dir)
	require.NoError(t, store.StoreAPIKey("xai-secret"))

	info, err := os.Stat(filepath.Join(dir, apiKeySecret))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCredentialStore_RejectsEmpty(t *testing.T) {
	store := NewCredentialStore(t.TempDir())
	err := store.StoreAPIKey("   ")
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCredentialStore_TrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, apiKeySecret), []byte("xai-k\n"), 0o600))
	key, err := NewCredentialStore(dir).APIKey()
	require.NoError(t, err)
	assert.Equal(t, "xai-k", key)
}

func TestResolveAPIKey_Order(t *testing.T) {
	store := NewCredentialStore(t.TempDir())
	require.NoError(t, store.StoreAPIKey("from-store"))

	t.Setenv("XAI_API_KEY", "from-env")
	key, err := ResolveAPIKey(Config{APIKey: "from-config"}, store)
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	key, err = ResolveAPIKey(Config{}, store)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("XAI_API_KEY", "")
	key, err = ResolveAPIKey(Config{}, store)
	require.NoError(t, err)
	assert.Equal(t, "from-store", key)
}

func TestResolveAPIKey_IgnoresMaskedAndUnexpanded(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	store := NewCredentialStore(t.TempDir())
	require.NoError(t, store.StoreAPIKey("from-store"))

	for _, v := range []string{"***", "${XAI_KEY_NOT_SET}"} {
		key, err := ResolveAPIKey(Config{APIKey: v}, store)
		require.NoError(t, err)
		assert.Equal(t, "from-store", key, "config value %q", v)
	}
}

func TestLocateAPIKey_Source(t *testing.T) {
	store := NewCredentialStore(t.TempDir())
	t.Setenv("XAI_API_KEY", "")

	_, source, err := LocateAPIKey(Config{}, store)
	require.NoError(t, err)
	assert.Empty(t, source)

	require.NoError(t, store.StoreAPIKey("from-store"))
	_, source, err = LocateAPIKey(Config{}, store)
	require.NoError(t, err)
	assert.Equal(t, KeySourceStore, source)

	t.Setenv("XAI_API_KEY", "from-env")
	_, source, err = LocateAPIKey(Config{}, store)
	require.NoError(t, err)
	assert.Equal(t, KeySourceEnv, source)

	key, source, err := LocateAPIKey(Config{APIKey: "from-config"}, store)
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
	assert.Equal(t, KeySourceConfig, source)
}

func TestResolveAPIKey_NilStore(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	key, err := ResolveAPIKey(Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", MaskKey(""))
	assert.Equal(t, "***", MaskKey("abcd"))
	assert.Equal(t, "***wxyz", MaskKey("xai-1234wxyz"))
}
