package provider

import (
	"encoding/json"
	"strings"
)

// ParseTextResult decodes a JSON body produced by a model and validates it
// against the shape required for kind. Markdown code fences around the JSON
// are tolerated since several models add them despite instructions.
func ParseTextResult(kind TextKind, raw string) (TextResult, error) {
	body := stripFences(raw)
	if body == "" {
		return TextResult{}, Malformed("empty response body")
	}

	var res TextResult
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&res); err != nil {
		return TextResult{}, Malformed("decoding %s: %v", kind, err)
	}
	if err := res.Validate(kind); err != nil {
		return TextResult{}, err
	}
	return res, nil
}

// Validate checks that the fields required for kind are present.
func (r TextResult) Validate(kind TextKind) error {
	switch kind {
	case KindSocialPost:
		if len(r.Captions) == 0 {
			return Malformed("captions missing")
		}
		for i, c := range r.Captions {
			if strings.TrimSpace(c.Text) == "" {
				return Malformed("caption %d has no text", i)
			}
		}
	case KindCampaign:
		if strings.TrimSpace(r.Caption) == "" {
			return Malformed("caption missing")
		}
	default:
		return Malformed("unknown text kind %q", kind)
	}
	if len(r.Hashtags) == 0 {
		return Malformed("hashtags missing")
	}
	if strings.TrimSpace(r.ImagePrompt) == "" {
		return Malformed("imagePrompt missing")
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
