// Package ollama implements provider.Provider against a local Ollama server.
// Ollama serves text and embedding models only; image requests report
// provider.ErrUnavailable so the caller falls back.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/hrithiknl17/socialagent/internal/provider"
)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultTextModel  = "llama3.2"
	DefaultEmbedModel = "nomic-embed-text"
)

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	TextModel  string
	EmbedModel string
}

// Message represents a chat message in the Ollama API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is a JSON schema passed as the chat "format" for structured output.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL    string
	textModel  string
	embedModel string
	httpClient *http.Client
}

// New creates a Client. Empty fields take the package defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		textModel:  cfg.TextModel,
		embedModel: cfg.EmbedModel,
		// No client timeout: pulls and cold model loads can take minutes.
		httpClient: &http.Client{},
	}
}

func (c *Client) Name() string {
	return "ollama:" + c.textModel
}

// GenerateText runs a non-streaming chat constrained to the schema of req.Kind.
func (c *Client) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResult, error) {
	var msgs []Message
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt})

	content, err := c.Chat(ctx, c.textModel, msgs, schemaFor(req.Kind))
	if err != nil {
		return provider.TextResult{}, err
	}
	return provider.ParseTextResult(req.Kind, content)
}

// GenerateImage is not supported by Ollama.
func (c *Client) GenerateImage(context.Context, string) (string, error) {
	return "", fmt.Errorf("ollama: image generation: %w", provider.ErrUnavailable)
}

// EmbedText embeds text with the configured embedding model.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, c.embedModel, text)
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   any       `json:"format,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends messages to model and returns the assistant's reply. A non-nil
// schema constrains the reply to matching JSON.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, schema *Schema) (string, error) {
	cr := chatRequest{Model: model, Messages: messages}
	if schema != nil {
		cr.Format = schema
	}

	var result chatResponse
	if err := c.call(ctx, "/api/chat", cr, &result); err != nil {
		return "", fmt.Errorf("ollama: chat: %w", err)
	}
	return result.Message.Content, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for text using model.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var result embedResponse
	if err := c.call(ctx, "/api/embed", embedRequest{Model: model, Input: text}, &result); err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, provider.Malformed("ollama: empty embeddings array")
	}
	return result.Embeddings[0], nil
}

// request sends in as the JSON body (nil for none) and returns the open
// response for a 200. Other outcomes are mapped onto provider error classes.
func (c *Client) request(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrTransient, err)
		}
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	if class := provider.ClassifyStatus(resp.StatusCode); class != nil {
		return nil, fmt.Errorf("%w: %v", class, err)
	}
	return nil, err
}

// call is request followed by decoding the JSON reply into out.
func (c *Client) call(ctx context.Context, path string, in, out any) error {
	resp, err := c.request(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.Malformed("decoding %s response: %v", path, err)
	}
	return nil
}

func schemaFor(kind provider.TextKind) *Schema {
	str := &Schema{Type: "string"}
	tags := &Schema{Type: "array", Items: str}
	if kind == provider.KindSocialPost {
		return &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"captions": {
					Type: "array",
					Items: &Schema{
						Type:       "object",
						Properties: map[string]*Schema{"style": str, "text": str},
						Required:   []string{"style", "text"},
					},
				},
				"hashtags":    tags,
				"imagePrompt": str,
			},
			Required: []string{"captions", "hashtags", "imagePrompt"},
		}
	}
	return &Schema{
		Type:       "object",
		Properties: map[string]*Schema{"caption": str, "hashtags": tags, "imagePrompt": str},
		Required:   []string{"caption", "hashtags", "imagePrompt"},
	}
}
