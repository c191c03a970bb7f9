// Package openai implements provider.Provider on the official OpenAI SDK.
// Any OpenAI-compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hrithiknl17/socialagent/internal/provider"
)

const (
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
	DefaultEmbedModel = "text-embedding-3-small"
)

// Config holds the adapter settings.
type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	EmbedModel string
	// Dimensions requests a specific embedding length when > 0.
	Dimensions int
}

// Client is an OpenAI-backed provider.
type Client struct {
	client openai.Client
	cfg    Config
}

// New creates a client. The SDK's own retries are disabled; callers retry
// through the resilience package.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required: %w", provider.ErrUnauthenticated)
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (c *Client) Name() string {
	return "openai:" + c.cfg.TextModel
}

// GenerateText sends a chat completion and decodes its JSON content.
func (c *Client) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResult, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.TextModel),
		Messages: msgs,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return provider.TextResult{}, classify("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return provider.TextResult{}, provider.Malformed("empty choices")
	}
	return provider.ParseTextResult(req.Kind, resp.Choices[0].Message.Content)
}

// GenerateImage returns a hosted URL, or a data URI when the model replies
// with base64 content.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(c.cfg.ImageModel),
	})
	if err != nil {
		return "", classify("image generation", err)
	}
	if len(resp.Data) == 0 {
		return "", provider.Malformed("no images returned")
	}
	img := resp.Data[0]
	switch {
	case img.B64JSON != "":
		return "data:image/png;base64," + img.B64JSON, nil
	case img.URL != "":
		return img.URL, nil
	}
	return "", provider.Malformed("image has neither url nor b64_json")
}

// EmbedText embeds text, narrowing the SDK's float64 values to float32.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.cfg.EmbedModel),
	}
	if c.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.Dimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify("embedding", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, provider.Malformed("no embedding values returned")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai: %s: %w", op, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if class := provider.ClassifyStatus(apiErr.StatusCode); class != nil {
			return fmt.Errorf("openai: %s: %w: %v", op, class, err)
		}
		return fmt.Errorf("openai: %s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("openai: %s: %w: %v", op, provider.ErrTransient, err)
	}
	return fmt.Errorf("openai: %s: %w", op, err)
}
