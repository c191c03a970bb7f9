// Package provider defines the capability contract every generative AI
// backend implements, together with the error classes callers use to decide
// between retrying, falling back and failing.
package provider

import "context"

// TextKind selects the output shape expected from GenerateText.
type TextKind string

const (
	// KindSocialPost asks for several captions in different tones.
	KindSocialPost TextKind = "social_post"
	// KindCampaign asks for a single marketing caption.
	KindCampaign TextKind = "campaign"
)

// Provider abstracts an external text, image and embedding generation
// service. Implementations must return errors wrapping one of the sentinel
// errors in this package so the resilience layer can classify them.
type Provider interface {
	// GenerateText produces captions, hashtags and an image prompt.
	GenerateText(ctx context.Context, req TextRequest) (TextResult, error)

	// GenerateImage returns a URI (https or data:) for an image rendered from prompt.
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// EmbedText returns a fixed-length embedding vector for text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// Name identifies the backend in logs, e.g. "gemini:gemini-2.5-flash".
	Name() string
}

// TextRequest is a fully composed text-generation request.
type TextRequest struct {
	Kind   TextKind
	System string
	Prompt string

	// Topic, ProductID and ContextNote identify the request for logging
	// and cache keying. Adapters only send System and Prompt.
	Topic       string
	ProductID   string
	ContextNote string
}

// Caption is one caption variant with the tone it was written in.
type Caption struct {
	Style string `json:"style"`
	Text  string `json:"text"`
}

// TextResult is the structured output of GenerateText. Social posts fill
// Captions, campaigns fill Caption.
type TextResult struct {
	Captions    []Caption `json:"captions,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Hashtags    []string  `json:"hashtags"`
	ImagePrompt string    `json:"imagePrompt"`
}

// Clone returns a deep copy so cached values are never aliased by callers.
func (r TextResult) Clone() TextResult {
	out := r
	if r.Captions != nil {
		out.Captions = append([]Caption(nil), r.Captions...)
	}
	if r.Hashtags != nil {
		out.Hashtags = append([]string(nil), r.Hashtags...)
	}
	return out
}
