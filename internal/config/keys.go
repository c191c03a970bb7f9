package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SOCIALAGENT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "SOCIALAGENT_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "provider.name", typ: kString, env: "SOCIALAGENT_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Provider.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Name },
	},
	{
		key: "gemini.api_key", typ: kString, env: "SOCIALAGENT_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.text_model", typ: kString, env: "SOCIALAGENT_GEMINI_TEXT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.TextModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.TextModel },
	},
	{
		key: "gemini.image_model", typ: kString, env: "SOCIALAGENT_GEMINI_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ImageModel },
	},
	{
		key: "gemini.embed_model", typ: kString, env: "SOCIALAGENT_GEMINI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedModel },
	},
	{
		key: "openai.api_key", typ: kString, env: "SOCIALAGENT_OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "SOCIALAGENT_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.text_model", typ: kString, env: "SOCIALAGENT_OPENAI_TEXT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.TextModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.TextModel },
	},
	{
		key: "openai.image_model", typ: kString, env: "SOCIALAGENT_OPENAI_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ImageModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "SOCIALAGENT_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SOCIALAGENT_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.text_model", typ: kString, env: "SOCIALAGENT_OLLAMA_TEXT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.TextModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.TextModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "SOCIALAGENT_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "embedding.dimensions", typ: kInt, env: "SOCIALAGENT_EMBEDDING_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Dimensions },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SOCIALAGENT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SOCIALAGENT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "retry.max_retries", typ: kInt, env: "SOCIALAGENT_RETRY_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Retry.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Retry.MaxRetries },
	},
	{
		key: "retry.initial_delay", typ: kDuration, env: "SOCIALAGENT_RETRY_INITIAL_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Retry.InitialDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Retry.InitialDelay },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "SOCIALAGENT_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.similarity_threshold", typ: kFloat, env: "SOCIALAGENT_RETRIEVAL_SIMILARITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.SimilarityThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.SimilarityThreshold },
	},
	{
		key: "catalog.latency", typ: kDuration, env: "SOCIALAGENT_CATALOG_LATENCY",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Latency = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Catalog.Latency },
	},
	{
		key: "fallback.allow_on_auth_error", typ: kBool, env: "SOCIALAGENT_FALLBACK_ALLOW_ON_AUTH_ERROR",
		apply:   func(cfg *Config, v any) { cfg.Fallback.AllowOnAuthError = v.(bool) },
		extract: func(cfg Config) any { return cfg.Fallback.AllowOnAuthError },
	},
}

// parse converts raw into the Go value for the key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func (s keySpec) typeName() string {
	switch s.typ {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	}
	return "string"
}

// applyBackend layers persisted values over the defaults. A malformed
// integer is an error since ports and counts have no safe fallback; other
// malformed values warn and keep the default.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := b.Lookup(s.key)
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			if s.typ == kInt {
				return fmt.Errorf("reading %s: invalid integer %q", s.key, raw)
			}
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typeName(), s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if v, err := s.parse(raw); err == nil {
			s.apply(cfg, v)
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typeName(), s.env, raw, err)
		}
	}
}
