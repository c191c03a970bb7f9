// Package cache memoizes generation results by normalized key.
//
// Entries never expire and the cache is unbounded. When a backing KV is
// configured, writes are mirrored into it as JSON and misses read through,
// so results survive restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hrithiknl17/socialagent/internal/storage"
)

// PromptKeyRunes is the prefix length NormalizePrompt keeps.
const PromptKeyRunes = 50

// NormalizeKey case-folds and trims key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// NormalizePrompt normalizes like NormalizeKey and then keeps only the first
// PromptKeyRunes runes. Prompts that share that prefix share a cache entry.
func NormalizePrompt(prompt string) string {
	k := NormalizeKey(prompt)
	r := []rune(k)
	if len(r) > PromptKeyRunes {
		return string(r[:PromptKeyRunes])
	}
	return k
}

// Cache is a concurrency-safe map from normalized keys to values.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V

	backing   storage.KV
	namespace string
	clone     func(V) V
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithBacking mirrors entries into kv under "<namespace>:<key>".
func WithBacking[V any](kv storage.KV, namespace string) Option[V] {
	return func(c *Cache[V]) {
		c.backing = kv
		c.namespace = namespace
	}
}

// WithClone sets a copy function applied on Get and Put so callers never
// share mutable state with the cache.
func WithClone[V any](fn func(V) V) Option[V] {
	return func(c *Cache[V]) { c.clone = fn }
}

// New returns an empty cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{entries: make(map[string]V)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the value stored under the normalized key.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	key = NormalizeKey(key)

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return c.copy(v), true
	}

	if c.backing == nil {
		var zero V
		return zero, false
	}
	return c.readThrough(ctx, key)
}

// Put stores v under the normalized key. The last write wins.
func (c *Cache[V]) Put(ctx context.Context, key string, v V) {
	key = NormalizeKey(key)
	v = c.copy(v)

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()

	if c.backing == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: encoding entry", "namespace", c.namespace, "error", err)
		return
	}
	if err := c.backing.Set(ctx, c.storageKey(key), data); err != nil {
		slog.Warn("cache: writing entry", "namespace", c.namespace, "error", err)
	}
}

// Len reports the number of entries held in memory.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) readThrough(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := c.backing.Get(ctx, c.storageKey(key))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("cache: reading entry", "namespace", c.namespace, "error", err)
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("cache: decoding entry", "namespace", c.namespace, "error", err)
		return zero, false
	}

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return c.copy(v), true
}

func (c *Cache[V]) storageKey(key string) string {
	return "cache:" + c.namespace + ":" + key
}

func (c *Cache[V]) copy(v V) V {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}
