// Package brief reads creative briefs from PDF files and turns them into
// post topics.
package brief

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxRunes caps the topic extracted from a brief.
const DefaultMaxRunes = 500

// ErrEmptyBrief is returned when a brief contains no extractable text.
var ErrEmptyBrief = errors.New("brief contains no text")

// ReadFile extracts the text of the PDF at path and returns it as a topic of
// at most maxRunes runes. If maxRunes <= 0, DefaultMaxRunes is used.
func ReadFile(path string, maxRunes int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening brief %s: %w", path, err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	raw, err := io.ReadAll(text)
	if err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}

	topic := Topic(string(raw), maxRunes)
	if topic == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyBrief)
	}
	return topic, nil
}

// Topic collapses whitespace in text and truncates it to maxRunes runes on a
// word boundary where possible.
func Topic(text string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	r := []rune(collapsed)
	if len(r) <= maxRunes {
		return collapsed
	}
	cut := string(r[:maxRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
