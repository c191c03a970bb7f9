// Package gemini implements provider.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/hrithiknl17/socialagent/internal/provider"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultEmbedModel = "text-embedding-004"
)

// Config holds the adapter settings.
type Config struct {
	APIKey     string
	TextModel  string
	ImageModel string
	EmbedModel string
	// Dimensions requests a specific embedding length when > 0.
	Dimensions int
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// models is the subset of *genai.Models used here.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client is a Gemini-backed provider.
type Client struct {
	models models
	cfg    Config
}

// New creates a Gemini client. An empty API key is a configuration error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required: %w", provider.ErrUnauthenticated)
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newWithModels(gc.Models, cfg), nil
}

func newWithModels(m models, cfg Config) *Client {
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	return &Client{models: m, cfg: cfg}
}

func (c *Client) Name() string {
	return "gemini:" + c.cfg.TextModel
}

// GenerateText asks for JSON constrained by the response schema of req.Kind.
func (c *Client) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResult, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schemaFor(req.Kind),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		return provider.TextResult{}, classify("generating text", err)
	}
	return provider.ParseTextResult(req.Kind, resp.Text())
}

// GenerateImage returns the first inline image as a data URI.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.ImageModel, genai.Text(prompt), nil)
	if err != nil {
		return "", classify("generating image", err)
	}
	return imageURI(resp)
}

// EmbedText embeds text with the configured embedding model.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if c.cfg.Dimensions > 0 {
		dims := int32(c.cfg.Dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.models.EmbedContent(ctx, c.cfg.EmbedModel, contents, cfg)
	if err != nil {
		return nil, classify("embedding text", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, provider.Malformed("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func imageURI(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", provider.Malformed("no image candidates returned")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
	}
	return "", provider.Malformed("response carries no inline image data")
}

// classify maps SDK errors onto the provider error classes.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini: %s: %w", op, err)
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code, status := 0, ""
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr):
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}

	if class := provider.ClassifyStatus(code); class != nil {
		return fmt.Errorf("gemini: %s: %w: %v", op, class, err)
	}
	switch strings.ToUpper(status) {
	case "RESOURCE_EXHAUSTED":
		return fmt.Errorf("gemini: %s: %w: %v", op, provider.ErrQuotaExceeded, err)
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return fmt.Errorf("gemini: %s: %w: %v", op, provider.ErrUnauthenticated, err)
	case "UNAVAILABLE", "INTERNAL":
		return fmt.Errorf("gemini: %s: %w: %v", op, provider.ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("gemini: %s: %w: %v", op, provider.ErrTransient, err)
	}
	return fmt.Errorf("gemini: %s: %w", op, err)
}

func schemaFor(kind provider.TextKind) *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	tags := &genai.Schema{Type: genai.TypeArray, Items: str}

	if kind == provider.KindSocialPost {
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"captions": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"style": str,
							"text":  str,
						},
					},
				},
				"hashtags":    tags,
				"imagePrompt": str,
			},
			Required: []string{"captions", "hashtags", "imagePrompt"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"caption":     str,
			"hashtags":    tags,
			"imagePrompt": str,
		},
		Required: []string{"caption", "hashtags", "imagePrompt"},
	}
}
