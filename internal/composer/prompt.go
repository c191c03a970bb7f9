// Package composer assembles the text-generation requests sent to providers.
package composer

import (
	"fmt"
	"strings"

	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/vectorindex"
)

const defaultMaxContextRunes = 1000

const systemPrompt = "You are a social media marketing assistant. Respond with a single JSON object and no surrounding text."

// Composer builds provider requests. The context note attached to campaign
// prompts is capped at MaxContextRunes.
type Composer struct {
	MaxContextRunes int
}

// New creates a Composer. If maxContextRunes <= 0, the default (1000) is used.
func New(maxContextRunes int) *Composer {
	if maxContextRunes <= 0 {
		maxContextRunes = defaultMaxContextRunes
	}
	return &Composer{MaxContextRunes: maxContextRunes}
}

// SocialPost builds the request for three captions, 15 hashtags and an
// image prompt about topic.
func (c *Composer) SocialPost(topic string) provider.TextRequest {
	topic = strings.TrimSpace(topic)

	var sb strings.Builder
	sb.WriteString("Role: Social Media Expert.\n")
	fmt.Fprintf(&sb, "Topic: %q\n\n", topic)
	sb.WriteString("Task:\n")
	sb.WriteString("1. Generate 3 distinct caption options with different tones (e.g., Witty, Professional, Minimalist).\n")
	sb.WriteString("2. Generate 15 high-ranking hashtags relevant to the topic.\n")
	sb.WriteString("3. Write a highly detailed, artistic image generation prompt that would create a stunning visual for this post.\n\n")
	sb.WriteString(`Return pure JSON of the form {"captions":[{"style":"...","text":"..."}],"hashtags":["#..."],"imagePrompt":"..."}.`)

	return provider.TextRequest{
		Kind:   provider.KindSocialPost,
		System: systemPrompt,
		Prompt: sb.String(),
		Topic:  topic,
	}
}

// Campaign builds the request for a single caption, 10 hashtags and a
// lifestyle image prompt for p. contextNote is included when non-empty.
func (c *Composer) Campaign(p catalog.Product, contextNote string) provider.TextRequest {
	note := c.capNote(contextNote)

	var sb strings.Builder
	sb.WriteString("Role: Marketing Campaign Creator.\n")
	fmt.Fprintf(&sb, "Product: %s (%s)\n", p.Title, p.Category)
	fmt.Fprintf(&sb, "Price: $%.2f\n", p.Price)
	fmt.Fprintf(&sb, "Features: %s\n\n", strings.Join(p.Features, ", "))
	if note != "" {
		fmt.Fprintf(&sb, "Context: %s\n\n", note)
	}
	sb.WriteString("Task:\n")
	sb.WriteString("1. Write a catchy, high-conversion Instagram caption.\n")
	sb.WriteString("2. Generate 10 relevant hashtags.\n")
	sb.WriteString("3. Create a detailed prompt for generating a lifestyle marketing image for this product.\n\n")
	sb.WriteString(`Return pure JSON of the form {"caption":"...","hashtags":["#..."],"imagePrompt":"..."}.`)

	return provider.TextRequest{
		Kind:        provider.KindCampaign,
		System:      systemPrompt,
		Prompt:      sb.String(),
		ProductID:   p.ID,
		ContextNote: note,
	}
}

// SimilarityNote returns the note that steers generation away from past
// campaigns, or "" when the best match does not exceed threshold. matches
// must be ordered by descending score.
func SimilarityNote(matches []vectorindex.Scored, threshold float32) string {
	if len(matches) == 0 || matches[0].Score <= threshold {
		return ""
	}
	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		title := m.Metadata["title"]
		if title == "" {
			title = m.ID
		}
		titles = append(titles, title)
	}
	return fmt.Sprintf("NOTE: We have previously promoted similar items: %s. Ensure this new post is distinct and fresh.", strings.Join(titles, ", "))
}

func (c *Composer) capNote(note string) string {
	note = strings.TrimSpace(note)
	r := []rune(note)
	if len(r) <= c.MaxContextRunes {
		return note
	}
	return string(r[:c.MaxContextRunes])
}
