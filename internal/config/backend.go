package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ConfigBackend is where persisted settings live. Values are exchanged as
// the raw strings a keySpec parses, so every backend shares one set of
// type rules.
type ConfigBackend interface {
	Lookup(key string) (raw string, ok bool)
	Store(key string, val any) error
}

// fileBackend keeps settings as one flat JSON object keyed by dotted name.
// A missing or unreadable file behaves as an empty one.
type fileBackend struct {
	path   string
	values map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &b.values); err != nil || b.values == nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.values = map[string]any{}
		}
	}
	return b
}

// Lookup renders the stored JSON value as text. Numbers are written without
// exponent so that 5000 reads back as "5000".
func (b *fileBackend) Lookup(key string) (string, bool) {
	v, ok := b.values[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	}
	return fmt.Sprint(v), true
}

// Store sets key and rewrites the whole file.
func (b *fileBackend) Store(key string, val any) error {
	b.values[key] = val
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, out, 0o600)
}
