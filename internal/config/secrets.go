package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileSecrets reads API keys from a JSON file of the form
// {"socialagent": {"gemini_api_key": "..."}}.
type fileSecrets struct {
	path string
}

func (f fileSecrets) Get(account string) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[appName][account]
	if !ok {
		return "", fmt.Errorf("account %q not found in %s", account, f.path)
	}
	return val, nil
}

func (f fileSecrets) Set(account, value string) error {
	var secrets map[string]map[string]string

	data, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &secrets); err != nil {
			return fmt.Errorf("parsing secrets file %s, fix or remove it first: %w", f.path, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("reading secrets file: %w", err)
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[appName] == nil {
		secrets[appName] = make(map[string]string)
	}
	secrets[appName][account] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

// secretAccount maps a config key such as "gemini.api_key" to its account
// name in the secrets file.
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := secrets.Get(secretAccount(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
