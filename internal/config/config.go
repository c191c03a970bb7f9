package config

import (
	"os"
	"path/filepath"
	"time"
)

const appName = "socialagent"

type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Ollama    OllamaConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Log       LogConfig
	Retry     RetryConfig
	Retrieval RetrievalConfig
	Catalog   CatalogConfig
	Fallback  FallbackConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

// ProviderConfig selects the generation provider: "auto", "gemini",
// "openai", "ollama" or "fallback".
type ProviderConfig struct {
	Name string
}

type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
	EmbedModel string
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	EmbedModel string
}

type OllamaConfig struct {
	BaseURL    string
	TextModel  string
	EmbedModel string
}

type EmbeddingConfig struct {
	Dimensions int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
}

type CatalogConfig struct {
	Latency time.Duration
}

type FallbackConfig struct {
	AllowOnAuthError bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Provider: ProviderConfig{
			Name: "auto",
		},
		Gemini: GeminiConfig{
			TextModel:  "gemini-2.5-flash",
			ImageModel: "gemini-2.5-flash-image",
			EmbedModel: "text-embedding-004",
		},
		OpenAI: OpenAIConfig{
			TextModel:  "gpt-4o-mini",
			ImageModel: "dall-e-3",
			EmbedModel: "text-embedding-3-small",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			TextModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Embedding: EmbeddingConfig{
			Dimensions: 768,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			TopK:                2,
			SimilarityThreshold: 0.8,
		},
		Catalog: CatalogConfig{
			Latency: 800 * time.Millisecond,
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/socialagent/config.json, then applies environment
// variable overrides (SOCIALAGENT_*). Secrets not set in the environment are
// read from $XDG_DATA_HOME/socialagent/secrets.json.
//
// A missing API key is not an error: generation then runs on the local
// fallback synthesizer.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(account string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	return cfg, nil
}

func dataHome() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return dir
}

func defaultDataDir() string {
	return filepath.Join(dataHome(), appName)
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, appName, "config.json")
}

func secretsFilePath() string {
	return filepath.Join(dataHome(), appName, "secrets.json")
}
