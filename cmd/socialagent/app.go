package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/config"
	"github.com/hrithiknl17/socialagent/internal/gemini"
	"github.com/hrithiknl17/socialagent/internal/generation"
	"github.com/hrithiknl17/socialagent/internal/ollama"
	"github.com/hrithiknl17/socialagent/internal/openai"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/resilience"
	"github.com/hrithiknl17/socialagent/internal/storage"
	"github.com/hrithiknl17/socialagent/internal/vectorindex"
)

// app is the wired component graph shared by the server and the local commands.
type app struct {
	cfg       config.Config
	store     *storage.Store
	catalog   *catalog.Catalog
	generator *generation.Generator
	index     *vectorindex.Index
	history   *campaign.History
	agent     *agent.Orchestrator
}

func (a *app) Close() error {
	return a.store.Close()
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// newApp wires the components described by cfg. progress receives provider
// startup output such as Ollama model pulls.
func newApp(ctx context.Context, cfg config.Config, progress io.Writer) (*app, error) {
	p, err := newProvider(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	gen := generation.New(p,
		generation.WithPolicy(resilience.Policy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
		}),
		generation.WithAuthFallback(cfg.Fallback.AllowOnAuthError),
		generation.WithEmbeddingDimensions(cfg.Embedding.Dimensions),
		generation.WithCacheBacking(store),
	)

	a := &app{
		cfg:       cfg,
		store:     store,
		catalog:   catalog.NewMock(cfg.Catalog.Latency),
		generator: gen,
		index:     vectorindex.New(store),
		history:   campaign.NewHistory(store),
	}
	a.agent = agent.New(a.catalog, a.generator, a.index, a.history,
		agent.WithTopK(cfg.Retrieval.TopK),
		agent.WithThreshold(float32(cfg.Retrieval.SimilarityThreshold)),
	)
	return a, nil
}

// newProvider returns the configured provider, or nil when generation should
// run entirely on the fallback synthesizer.
func newProvider(ctx context.Context, cfg config.Config, progress io.Writer) (provider.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if name == "" || name == "auto" {
		switch {
		case cfg.Gemini.APIKey != "":
			name = "gemini"
		case cfg.OpenAI.APIKey != "":
			name = "openai"
		default:
			slog.Warn("no provider API key configured, using fallback content")
			return nil, nil
		}
	}

	switch name {
	case "fallback", "none":
		return nil, nil
	case "gemini":
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			TextModel:  cfg.Gemini.TextModel,
			ImageModel: cfg.Gemini.ImageModel,
			EmbedModel: cfg.Gemini.EmbedModel,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		c, err := openai.New(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			TextModel:  cfg.OpenAI.TextModel,
			ImageModel: cfg.OpenAI.ImageModel,
			EmbedModel: cfg.OpenAI.EmbedModel,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		c := ollama.New(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			TextModel:  cfg.Ollama.TextModel,
			EmbedModel: cfg.Ollama.EmbedModel,
		})
		if err := ollama.EnsureReady(ctx, c, progress); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown provider %q (want auto, gemini, openai, ollama or fallback)", cfg.Provider.Name)
}
