// Package fallback produces deterministic local substitutes for generation
// results when the provider cannot be used. Nothing here touches the network
// and no function can fail.
package fallback

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/provider"
)

const (
	SocialHashtagCount   = 15
	CampaignHashtagCount = 10

	// DefaultImageBase is the placeholder image service template prefix.
	DefaultImageBase = "https://placehold.co/1080x1350/1a1a1a/FFF"

	// maxImageTextRunes caps the prompt text embedded in placeholder URLs.
	maxImageTextRunes = 60
)

var trendingTags = []string{
	"#trending", "#instagood", "#explore", "#viral", "#photooftheday",
	"#instadaily", "#style", "#inspiration", "#lifestyle", "#newdrop",
	"#shopnow", "#musthave", "#design", "#daily", "#motivation", "#love",
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "for": true,
	"to": true, "in": true, "on": true, "with": true, "at": true, "by": true,
	"is": true, "it": true, "my": true, "our": true, "your": true, "this": true,
	"that": true, "from": true, "or": true, "new": true,
}

// Synthesizer builds fallback results. The zero value is ready to use.
type Synthesizer struct {
	// ImageBase overrides DefaultImageBase.
	ImageBase string
}

// New returns a Synthesizer using the default placeholder service.
func New() *Synthesizer {
	return &Synthesizer{}
}

// SocialPost returns three captions in Witty, Professional and Minimalist
// tones plus SocialHashtagCount hashtags for topic.
func (s *Synthesizer) SocialPost(topic string) provider.TextResult {
	subject := strings.TrimSpace(topic)
	return provider.TextResult{
		Captions: []provider.Caption{
			{Style: "Witty", Text: fmt.Sprintf("Plot twist: %s just became the best part of your feed.", subject)},
			{Style: "Professional", Text: fmt.Sprintf("Discover %s, crafted for people who expect more from every detail.", subject)},
			{Style: "Minimalist", Text: fmt.Sprintf("%s. Nothing more needed.", subject)},
		},
		Hashtags:    Hashtags(subject, SocialHashtagCount),
		ImagePrompt: imagePrompt(subject),
	}
}

// Campaign returns a single caption and CampaignHashtagCount hashtags for p.
// A non-empty contextNote switches to a caption that stresses novelty.
func (s *Synthesizer) Campaign(p catalog.Product, contextNote string) provider.TextResult {
	var caption string
	if strings.TrimSpace(contextNote) != "" {
		caption = fmt.Sprintf("Something fresh in %s: the %s is here, and it is unlike anything we have shown you before.", p.Category, p.Title)
	} else {
		caption = fmt.Sprintf("Meet the %s. Built for everyday %s moments, now just $%.2f.", p.Title, strings.ToLower(p.Category), p.Price)
	}
	if len(p.Features) > 0 {
		caption += " Featuring " + strings.Join(p.Features, ", ") + "."
	}

	return provider.TextResult{
		Caption:     caption,
		Hashtags:    Hashtags(p.Title+" "+p.Category, CampaignHashtagCount),
		ImagePrompt: imagePrompt(p.Title + " (" + p.Category + ")"),
	}
}

// Image returns a placeholder image URI with prompt rendered as its label.
func (s *Synthesizer) Image(prompt string) string {
	text := []rune(strings.TrimSpace(prompt))
	if len(text) > maxImageTextRunes {
		text = text[:maxImageTextRunes]
	}
	label := string(text)
	if label == "" {
		label = "Image"
	}
	return s.base() + "?text=" + url.QueryEscape(label)
}

func (s *Synthesizer) base() string {
	if s.ImageBase != "" {
		return s.ImageBase
	}
	return DefaultImageBase
}

func imagePrompt(subject string) string {
	return fmt.Sprintf("%s: highly detailed, professionally lit lifestyle photograph, vibrant colors, shallow depth of field, 4k.", subject)
}

// Hashtags derives n hashtags from the tokens of text, padded with generic
// trending tags.
func Hashtags(text string, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]bool)
	add := func(tag string) {
		if len(out) < n && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}

	for _, tok := range tokens(text) {
		if stopWords[tok] {
			continue
		}
		add("#" + tok)
	}
	for _, tag := range trendingTags {
		add(tag)
	}
	for i := 1; len(out) < n; i++ {
		add(fmt.Sprintf("#trending%d", i))
	}
	return out
}

// tokens splits text into lower-case alphanumeric words.
func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
