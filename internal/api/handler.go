package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/generation"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/resilience"
	"github.com/hrithiknl17/socialagent/internal/storage"
	"github.com/hrithiknl17/socialagent/internal/vectorindex"
	"github.com/hrithiknl17/socialagent/internal/worker"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// Products lists the catalog.
type Products interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// Generator produces topic posts and query embeddings.
type Generator interface {
	SocialPost(ctx context.Context, topic string) (generation.SocialPost, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	ProviderName() string
	Stats() generation.Stats
}

// Campaigns starts campaign runs.
type Campaigns interface {
	Start(ctx context.Context, productID string) *agent.Run
}

// History reads stored campaigns.
type History interface {
	List(ctx context.Context) ([]campaign.Campaign, error)
	Get(ctx context.Context, id string) (campaign.Campaign, error)
}

// Searcher ranks stored campaigns against a query embedding.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]vectorindex.Scored, error)
}

// JobQueue queues asynchronous campaign runs.
type JobQueue interface {
	worker.JobStore
	GetJob(ctx context.Context, id string) (*storage.Job, error)
}

// Deps holds the dependencies of the HTTP and MCP surfaces.
type Deps struct {
	Products  Products
	Generator Generator
	Campaigns Campaigns
	History   History
	Index     Searcher
	Jobs      JobQueue // optional; if nil, job routes respond 503
	Token     string   // optional; if empty, /v1 is unauthenticated
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/products", handleListProducts(deps))
		r.Post("/posts", handleCreatePost(deps))
		r.Post("/campaigns", handleRunCampaign(deps))
		r.Get("/campaigns", handleListCampaigns(deps))
		r.Get("/campaigns/{id}", handleGetCampaign(deps))
		r.Post("/campaigns/jobs", handleEnqueueCampaign(deps))
		r.Get("/campaigns/jobs/{id}", handleGetJob(deps))
		r.Post("/search", handleSearch(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"provider": deps.Generator.ProviderName(),
			"stats":    deps.Generator.Stats(),
		})
	}
}

func handleListProducts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := deps.Products.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	}
}

type postRequest struct {
	Topic string `json:"topic"`
}

func handleCreatePost(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}

		post, err := deps.Generator.SocialPost(r.Context(), req.Topic)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

type campaignRequest struct {
	ProductID string `json:"product_id"`
}

type campaignResponse struct {
	RunID    string            `json:"run_id"`
	Campaign campaign.Campaign `json:"campaign"`
	Events   []agent.Event     `json:"events"`
}

func handleRunCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req campaignRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ProductID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "product_id is required")
			return
		}

		run := deps.Campaigns.Start(r.Context(), req.ProductID)
		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			streamRun(w, run)
			return
		}

		c, err := run.Wait()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, campaignResponse{RunID: run.ID, Campaign: c, Events: run.Log()})
	}
}

// streamRun writes the run's events as server-sent events, followed by a
// final "result" or "error" event.
func streamRun(w http.ResponseWriter, run *agent.Run) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		<-run.Done()
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	run.Follow(func(ev agent.Event) {
		writeSSE(w, "progress", ev)
		flusher.Flush()
	})

	c, err := run.Wait()
	if err != nil {
		_, errType := errorStatus(err)
		writeSSE(w, "error", errorBody(err.Error(), errType))
	} else {
		writeSSE(w, "result", c)
	}
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: marshaling stream event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func handleListCampaigns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		all, err := deps.History.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page(all, limit, offset))
	}
}

func handleGetCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.History.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

type jobResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

func handleEnqueueCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "job queue not configured")
			return
		}
		var req campaignRequest
		if !decodeBody(w, r, &req) {
			return
		}

		id, err := worker.Enqueue(r.Context(), deps.Jobs, req.ProductID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, jobResponse{ID: id, Status: storage.JobPending})
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "job queue not configured")
			return
		}
		job, err := deps.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobResponse{
			ID:         job.ID,
			Status:     job.Status,
			Attempts:   job.Attempts,
			LastError:  job.LastError,
			CampaignID: job.Result,
		})
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchHit is a stored campaign ranked against a query.
type SearchHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		hits, err := searchCampaigns(r.Context(), deps, req.Query, req.Limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hits)
	}
}

func searchCampaigns(ctx context.Context, deps Deps, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	vec, err := deps.Generator.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := deps.Index.Search(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]SearchHit, len(matches))
	for i, m := range matches {
		hits[i] = SearchHit{ID: m.ID, Title: m.Metadata["title"], Content: m.Content, Score: m.Score}
	}
	return hits, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// errorStatus maps a domain error to an HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generation.ErrEmptyTopic),
		errors.Is(err, generation.ErrEmptyPrompt),
		errors.Is(err, generation.ErrEmptyText),
		errors.Is(err, worker.ErrEmptyProductID):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, provider.ErrMalformedResponse),
		errors.Is(err, provider.ErrUnauthenticated),
		errors.Is(err, resilience.ErrRetriesExhausted):
		return http.StatusBadGateway, "api_error"
	}
	return http.StatusInternalServerError, "server_error"
}

func writeError(w http.ResponseWriter, err error) {
	code, errType := errorStatus(err)
	if code >= http.StatusInternalServerError {
		slog.Error("api: request failed", "status", code, "error", err)
	}
	httpError(w, code, errType, "%s", err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg, errType string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, errorBody(fmt.Sprintf(format, args...), errType))
}
