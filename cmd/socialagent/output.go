package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/generation"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// formatEvent renders a run event as one line, colored by severity.
func formatEvent(ev agent.Event) string {
	line := fmt.Sprintf("[%s] %s", ev.Step, ev.Message)
	switch ev.Severity {
	case agent.SeveritySuccess:
		return colorize(colorGreen, "✓ "+line)
	case agent.SeverityWarning:
		return colorize(colorYellow, "⚠ "+line)
	case agent.SeverityError:
		return colorize(colorRed, "✗ "+line)
	}
	return colorize(colorCyan, "→ "+line)
}

func writePost(w io.Writer, post generation.SocialPost) {
	for _, c := range post.Captions {
		fmt.Fprintf(w, "%s\n  %s\n\n", colorize(colorBold, c.Style), c.Text)
	}
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Hashtags:"), strings.Join(post.Hashtags, " "))
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Image prompt:"), post.ImagePrompt)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Image:"), truncateURI(post.ImageURI))
}

func writeCampaign(w io.Writer, c campaign.Campaign) {
	fmt.Fprintf(w, "%s %s (%s)\n", colorize(colorBold, "Campaign"), c.ID, c.ProductName)
	fmt.Fprintf(w, "  %s\n", c.Caption)
	fmt.Fprintf(w, "  %s\n", strings.Join(c.Hashtags, " "))
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Image:"), truncateURI(c.ImageURI))
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Created:"), c.CreatedAt.Format("2006-01-02 15:04:05"))
}

func writeProducts(w io.Writer, products []catalog.Product) {
	for _, p := range products {
		fmt.Fprintf(w, "%s  %-28s %-12s $%8.2f\n", colorize(colorBold, p.ID), p.Title, p.Category, p.Price)
	}
}

// truncateURI shortens inline data URIs, which can run to megabytes.
func truncateURI(uri string) string {
	const maxLen = 80
	if !strings.HasPrefix(uri, "data:") || len(uri) <= maxLen {
		return uri
	}
	return fmt.Sprintf("%s... (%d bytes)", uri[:maxLen], len(uri))
}
