package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const apiKeySecret = "xai_api_key"

// maskedKey is what `config get apiKey` style output shows instead of a secret.
const maskedKey = "***"

// CredentialStore keeps secrets as individual 0600 files under a directory.
type CredentialStore struct {
	dir string
}

// NewCredentialStore returns a store rooted at dir.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{dir: dir}
}

// Get returns the stored secret, or "" when none has been stored.
func (s *CredentialStore) Get(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Store writes a secret, replacing any previous value.
func (s *CredentialStore) Store(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ConfigError{Message: "refusing to store an empty credential"}
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0o600)
}

// Clear removes a stored secret. Clearing a missing secret is not an error.
func (s *CredentialStore) Clear(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// APIKey returns the stored xAI key.
func (s *CredentialStore) APIKey() (string, error) { return s.Get(apiKeySecret) }

// StoreAPIKey persists the xAI key.
func (s *CredentialStore) StoreAPIKey(key string) error { return s.Store(apiKeySecret, key) }

// ClearAPIKey removes the stored xAI key.
func (s *CredentialStore) ClearAPIKey() error { return s.Clear(apiKeySecret) }

// Sources an API key can be resolved from.
const (
	KeySourceConfig = "config"
	KeySourceEnv    = "env"
	KeySourceStore  = "stored"
)

// ResolveAPIKey picks the credential for outbound calls.
// Resolution order: config apiKey → XAI_API_KEY → stored secret.
// A masked or unexpanded config value is ignored.
func ResolveAPIKey(cfg Config, store *CredentialStore) (string, error) {
	key, _, err := LocateAPIKey(cfg, store)
	return key, err
}

// LocateAPIKey is ResolveAPIKey that also reports where the key came from.
// source is empty when no key is configured.
func LocateAPIKey(cfg Config, store *CredentialStore) (key, source string, err error) {
	if k := strings.TrimSpace(cfg.APIKey); k != "" && k != maskedKey && !envVarPattern.MatchString(k) {
		return k, KeySourceConfig, nil
	}
	if k := strings.TrimSpace(os.Getenv("XAI_API_KEY")); k != "" {
		return k, KeySourceEnv, nil
	}
	if store == nil {
		return "", "", nil
	}
	k, err := store.APIKey()
	if err != nil || k == "" {
		return "", "", err
	}
	return k, KeySourceStore, nil
}

// MaskKey hides all but the last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return maskedKey
	}
	return maskedKey + key[len(key)-4:]
}
