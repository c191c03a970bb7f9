package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type tagsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name string `json:"name"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streamed /api/pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// IsRunning reports whether the server answers /api/tags within two seconds.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := c.request(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ListModels returns the names of the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := c.request(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether name is installed. An untagged name matches any
// tag, so "llama3.2" finds "llama3.2:latest".
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// PullModel downloads name and reports each progress line to onProgress,
// which may be nil.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.request(ctx, http.MethodPost, "/api/pull", pullRequest{Name: name, Stream: true})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", name, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading pull progress for %s: %w", name, err)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// EnsureReady verifies the server is up, pulls the text and embedding models
// if they are missing and loads the text model with a throwaway chat.
// Progress goes to w, which may be nil.
func EnsureReady(ctx context.Context, c *Client, w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	if !c.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running at %s; start it with: ollama serve", c.baseURL)
	}

	for _, model := range []string{c.textModel, c.embedModel} {
		if !c.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: pulling...\n", model)
			err := c.PullModel(ctx, model, func(p PullProgress) {
				if p.Total > 0 {
					fmt.Fprintf(w, "  %s %d%%\n", p.Status, p.Completed*100/p.Total)
					return
				}
				fmt.Fprintf(w, "  %s\n", p.Status)
			})
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := c.Chat(warmCtx, c.textModel, []Message{{Role: "user", Content: "ping"}}, nil); err != nil {
		// A cold model still works, the first request is just slower.
		fmt.Fprintf(w, "model %s: warm-up failed: %v\n", c.textModel, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", c.textModel)
	return nil
}
