// Package generation routes content requests through the result cache, the
// retrying provider call and, when the provider cannot deliver, the local
// fallback synthesizer.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hrithiknl17/socialagent/internal/cache"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/composer"
	"github.com/hrithiknl17/socialagent/internal/fallback"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/resilience"
	"github.com/hrithiknl17/socialagent/internal/storage"
)

var (
	ErrEmptyTopic  = errors.New("topic must not be empty")
	ErrEmptyPrompt = errors.New("image prompt must not be empty")
	ErrEmptyText   = errors.New("text to embed must not be empty")
)

// SocialPost is the full result of a topic post request.
type SocialPost struct {
	Captions    []provider.Caption `json:"captions"`
	Hashtags    []string           `json:"hashtags"`
	ImagePrompt string             `json:"imagePrompt"`
	ImageURI    string             `json:"imageUrl"`
}

// Stats counts how requests were served since the Generator was created.
type Stats struct {
	ProviderCalls int64 `json:"provider_calls"`
	CacheHits     int64 `json:"cache_hits"`
	Fallbacks     int64 `json:"fallbacks"`
}

// Generator produces text, images and embeddings. A nil provider is valid:
// every request is then served by the fallback synthesizer.
type Generator struct {
	provider  provider.Provider
	composer  *composer.Composer
	synth     *fallback.Synthesizer
	policy    resilience.Policy
	authFall  bool
	dims      int
	backing   storage.KV
	social  *cache.Cache[provider.TextResult]
	images  *cache.Cache[string]
	vectors *cache.Cache[[]float32]

	providerCalls atomic.Int64
	cacheHits     atomic.Int64
	fallbacks     atomic.Int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithPolicy sets the retry policy for provider calls.
func WithPolicy(p resilience.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

// WithComposer replaces the default prompt composer.
func WithComposer(c *composer.Composer) Option {
	return func(g *Generator) { g.composer = c }
}

// WithSynthesizer replaces the default fallback synthesizer.
func WithSynthesizer(s *fallback.Synthesizer) Option {
	return func(g *Generator) { g.synth = s }
}

// WithAuthFallback makes ErrUnauthenticated fall back instead of propagating.
func WithAuthFallback(allow bool) Option {
	return func(g *Generator) { g.authFall = allow }
}

// WithEmbeddingDimensions sets the length of fallback embeddings. It should
// match the provider's output dimensionality.
func WithEmbeddingDimensions(n int) Option {
	return func(g *Generator) { g.dims = n }
}

// WithCacheBacking persists every result cache into kv.
func WithCacheBacking(kv storage.KV) Option {
	return func(g *Generator) { g.backing = kv }
}

// New returns a Generator calling p.
func New(p provider.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider: p,
		composer: composer.New(0),
		synth:    fallback.New(),
		policy:   resilience.DefaultPolicy(),
		dims:     fallback.DefaultDimensions,
	}
	for _, o := range opts {
		o(g)
	}

	cloneText := cache.WithClone(provider.TextResult.Clone)
	cloneVec := cache.WithClone(func(v []float32) []float32 { return append([]float32(nil), v...) })
	if g.backing != nil {
		g.social = cache.New(cloneText, cache.WithBacking[provider.TextResult](g.backing, "social"))
		g.images = cache.New(cache.WithBacking[string](g.backing, "image"))
		g.vectors = cache.New(cloneVec, cache.WithBacking[[]float32](g.backing, "embedding"))
	} else {
		g.social = cache.New(cloneText)
		g.images = cache.New[string]()
		g.vectors = cache.New(cloneVec)
	}
	return g
}

// ProviderName returns the configured provider's name, or "fallback".
func (g *Generator) ProviderName() string {
	if g.provider == nil {
		return "fallback"
	}
	return g.provider.Name()
}

// Stats returns a snapshot of the request counters.
func (g *Generator) Stats() Stats {
	return Stats{
		ProviderCalls: g.providerCalls.Load(),
		CacheHits:     g.cacheHits.Load(),
		Fallbacks:     g.fallbacks.Load(),
	}
}

// SocialPost generates captions and hashtags for topic, then renders the
// image its prompt describes.
func (g *Generator) SocialPost(ctx context.Context, topic string) (SocialPost, error) {
	text, err := g.SocialText(ctx, topic)
	if err != nil {
		return SocialPost{}, err
	}
	uri, err := g.Image(ctx, text.ImagePrompt)
	if err != nil {
		return SocialPost{}, err
	}
	return SocialPost{
		Captions:    text.Captions,
		Hashtags:    text.Hashtags,
		ImagePrompt: text.ImagePrompt,
		ImageURI:    uri,
	}, nil
}

// SocialText generates captions, hashtags and an image prompt for topic.
// Results are cached by the normalized topic.
func (g *Generator) SocialText(ctx context.Context, topic string) (provider.TextResult, error) {
	if strings.TrimSpace(topic) == "" {
		return provider.TextResult{}, ErrEmptyTopic
	}
	req := g.composer.SocialPost(topic)
	return route(ctx, g, "social_text", g.social, cache.NormalizeKey(topic),
		func(ctx context.Context, p provider.Provider) (provider.TextResult, error) {
			return p.GenerateText(ctx, req)
		},
		func() provider.TextResult { return g.synth.SocialPost(topic) },
	)
}

// CampaignContent generates a caption, hashtags and an image prompt for p.
// Every campaign run asks for fresh copy, so results bypass the cache; retry
// and fallback still apply.
func (g *Generator) CampaignContent(ctx context.Context, p catalog.Product, contextNote string) (provider.TextResult, error) {
	req := g.composer.Campaign(p, contextNote)
	return route(ctx, g, "campaign_text", nil, "",
		func(ctx context.Context, pv provider.Provider) (provider.TextResult, error) {
			return pv.GenerateText(ctx, req)
		},
		func() provider.TextResult { return g.synth.Campaign(p, req.ContextNote) },
	)
}

// Image renders prompt and returns its URI. Results are cached by the
// normalized prompt prefix.
func (g *Generator) Image(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	return route(ctx, g, "image", g.images, cache.NormalizePrompt(prompt),
		func(ctx context.Context, p provider.Provider) (string, error) {
			return p.GenerateImage(ctx, prompt)
		},
		func() string { return g.synth.Image(prompt) },
	)
}

// Embed returns the embedding of text. Results are cached by normalized text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return route(ctx, g, "embed", g.vectors, cache.NormalizeKey(text),
		func(ctx context.Context, p provider.Provider) ([]float32, error) {
			return p.EmbedText(ctx, text)
		},
		func() []float32 { return g.synth.Embedding(text, g.dims) },
	)
}

func route[T any](
	ctx context.Context,
	g *Generator,
	call string,
	c *cache.Cache[T],
	key string,
	op func(context.Context, provider.Provider) (T, error),
	synth func() T,
) (T, error) {
	if c != nil {
		if v, ok := c.Get(ctx, key); ok {
			g.cacheHits.Add(1)
			return v, nil
		}
	}

	var v T
	var err error
	if g.provider == nil {
		err = provider.ErrUnavailable
	} else {
		policy := g.policy
		policy.Name = g.provider.Name() + ":" + call
		if hook := retryHookFrom(ctx); hook != nil {
			policy.OnRetry = func(attempt int, delay time.Duration, err error) {
				hook(call, attempt, delay, err)
			}
		}
		v, err = resilience.Call(ctx, policy, func(ctx context.Context) (T, error) {
			g.providerCalls.Add(1)
			return op(ctx, g.provider)
		})
	}

	if err != nil {
		if !g.canFallback(err) {
			var zero T
			return zero, err
		}
		slog.Warn("generation: falling back", "call", call, "provider", g.ProviderName(), "error", err)
		g.fallbacks.Add(1)
		v = synth()
	}

	if c != nil {
		c.Put(ctx, key, v)
	}
	return v, nil
}

func (g *Generator) canFallback(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, provider.ErrUnavailable):
		return true
	case errors.Is(err, provider.ErrUnauthenticated):
		return g.authFall
	case errors.Is(err, resilience.ErrRetriesExhausted):
		return errors.Is(err, provider.ErrQuotaExceeded) || errors.Is(err, provider.ErrTransient)
	}
	return false
}
