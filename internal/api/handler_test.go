package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/fallback"
	"github.com/hrithiknl17/socialagent/internal/generation"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/resilience"
	"github.com/hrithiknl17/socialagent/internal/storage"
	"github.com/hrithiknl17/socialagent/internal/vectorindex"
)

const testToken = "test-token-12345"

// newTestDeps wires the real components with no provider, so every request is
// served by the fallback synthesizer.
func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	kv := storage.NewMemoryKV()
	cat := catalog.NewMock(0)
	gen := generation.New(nil)
	idx := vectorindex.New(kv)
	hist := campaign.NewHistory(kv)

	return Deps{
		Products:  cat,
		Generator: gen,
		Campaigns: agent.New(cat, gen, idx, hist),
		History:   hist,
		Index:     idx,
		Jobs:      store,
	}
}

func doReq(h http.Handler, method, url, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Type, body.Error.Message
}

func runCampaign(t *testing.T, h http.Handler, productID string) campaignResponse {
	t.Helper()
	rr := doReq(h, http.MethodPost, "/v1/campaigns", fmt.Sprintf(`{"product_id":%q}`, productID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	var resp campaignResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding campaign: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodGet, "/health", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "ok" || body["provider"] != "fallback" {
		t.Errorf("body = %v", body)
	}
}

func TestAuth(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = testToken
	h := NewHandler(deps)

	if rr := doReq(h, http.MethodGet, "/v1/products", "", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rr.Code)
	}
	if rr := doReq(h, http.MethodGet, "/v1/products", "", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rr.Code)
	}
	if rr := doReq(h, http.MethodGet, "/v1/products", "", testToken); rr.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rr.Code)
	}
	if rr := doReq(h, http.MethodGet, "/health", "", ""); rr.Code != http.StatusOK {
		t.Errorf("health without token: status = %d, want 200", rr.Code)
	}

	rr := doReq(h, http.MethodGet, "/v1/products", "", "")
	if got := rr.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q, want Bearer challenge", got)
	}
}

func TestAuth_LowercaseScheme(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = testToken
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.Header.Set("Authorization", "bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestListProducts(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodGet, "/v1/products", "", "")

	var products []catalog.Product
	if err := json.Unmarshal(rr.Body.Bytes(), &products); err != nil {
		t.Fatalf("decoding products: %v", err)
	}
	if len(products) != 4 {
		t.Fatalf("got %d products, want 4", len(products))
	}
	if products[0].ID != "prod_001" {
		t.Errorf("first product = %q, want prod_001", products[0].ID)
	}
}

func TestCreatePost(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodPost, "/v1/posts", `{"topic":"Rainy day coffee"}`, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	var post generation.SocialPost
	if err := json.Unmarshal(rr.Body.Bytes(), &post); err != nil {
		t.Fatalf("decoding post: %v", err)
	}
	if len(post.Captions) != 3 {
		t.Errorf("got %d captions, want 3", len(post.Captions))
	}
	if len(post.Hashtags) != fallback.SocialHashtagCount {
		t.Errorf("got %d hashtags, want %d", len(post.Hashtags), fallback.SocialHashtagCount)
	}
	if !strings.HasPrefix(post.ImageURI, fallback.DefaultImageBase) {
		t.Errorf("ImageURI = %q, want placeholder", post.ImageURI)
	}
}

func TestCreatePost_EmptyTopic(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodPost, "/v1/posts", `{"topic":"   "}`, "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if typ, _ := decodeError(t, rr); typ != "invalid_request_error" {
		t.Errorf("error type = %q", typ)
	}
}

func TestCreatePost_InvalidBody(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodPost, "/v1/posts", `{not json`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestRunCampaign(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	resp := runCampaign(t, h, "prod_001")

	if resp.Campaign.ProductName != "Nebula Runner 2025" {
		t.Errorf("ProductName = %q", resp.Campaign.ProductName)
	}
	if len(resp.Campaign.Hashtags) != fallback.CampaignHashtagCount {
		t.Errorf("got %d hashtags, want %d", len(resp.Campaign.Hashtags), fallback.CampaignHashtagCount)
	}
	if last := resp.Events[len(resp.Events)-1]; last.Stage != agent.StageCompleted {
		t.Errorf("last event stage = %q, want completed", last.Stage)
	}

	rr := doReq(h, http.MethodGet, "/v1/campaigns/"+resp.Campaign.ID, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get campaign: status = %d, want 200", rr.Code)
	}
}

func TestRunCampaign_UnknownProduct(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodPost, "/v1/campaigns", `{"product_id":"prod_999"}`, "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body = %s", rr.Code, rr.Body.String())
	}
	if typ, msg := decodeError(t, rr); typ != "not_found" || !strings.Contains(msg, "prod_999") {
		t.Errorf("error = %q %q", typ, msg)
	}
}

func TestRunCampaign_MissingProduct(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodPost, "/v1/campaigns", `{}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestRunCampaign_Stream(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns", strings.NewReader(`{"product_id":"prod_002"}`))
	req.Header.Set("Accept", "text/event-stream")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "event: progress\ndata: ") {
		t.Error("stream has no progress events")
	}
	if !strings.Contains(body, `"stage":"completed"`) {
		t.Error("stream has no completed event")
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "}") || !strings.Contains(body, "event: result\n") {
		t.Errorf("stream does not end with a result event:\n%s", body)
	}
}

func TestRunCampaign_StreamError(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns", strings.NewReader(`{"product_id":"prod_999"}`))
	req.Header.Set("Accept", "text/event-stream")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "event: error\n") || !strings.Contains(body, `"type":"not_found"`) {
		t.Errorf("stream missing error event:\n%s", body)
	}
}

func TestListCampaigns_Pagination(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	for _, id := range []string{"prod_001", "prod_002", "prod_003"} {
		runCampaign(t, h, id)
	}

	rr := doReq(h, http.MethodGet, "/v1/campaigns?limit=2&offset=0", "", "")
	var list []campaign.Campaign
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d campaigns, want 2", len(list))
	}
	if list[0].ProductID != "prod_003" {
		t.Errorf("newest campaign = %q, want prod_003", list[0].ProductID)
	}

	rr = doReq(h, http.MethodGet, "/v1/campaigns?offset=10", "", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("offset past end = %s, want []", rr.Body.String())
	}
}

func TestGetCampaign_NotFound(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rr := doReq(h, http.MethodGet, "/v1/campaigns/nope", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCampaignJobs(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := doReq(h, http.MethodPost, "/v1/campaigns/jobs", `{"product_id":"prod_001"}`, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("enqueue: status = %d, want 202; body = %s", rr.Code, rr.Body.String())
	}
	var queued jobResponse
	json.Unmarshal(rr.Body.Bytes(), &queued)
	if queued.ID == "" {
		t.Fatal("enqueue returned no job id")
	}

	rr = doReq(h, http.MethodGet, "/v1/campaigns/jobs/"+queued.ID, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get job: status = %d, want 200", rr.Code)
	}
	var job jobResponse
	json.Unmarshal(rr.Body.Bytes(), &job)
	if job.Status != storage.JobPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}

	if rr := doReq(h, http.MethodGet, "/v1/campaigns/jobs/missing", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d, want 404", rr.Code)
	}
	if rr := doReq(h, http.MethodPost, "/v1/campaigns/jobs", `{}`, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("empty product: status = %d, want 400", rr.Code)
	}
}

func TestCampaignJobs_NoQueue(t *testing.T) {
	deps := newTestDeps(t)
	deps.Jobs = nil
	h := NewHandler(deps)

	if rr := doReq(h, http.MethodPost, "/v1/campaigns/jobs", `{"product_id":"prod_001"}`, ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestSearch(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	runCampaign(t, h, "prod_001")
	runCampaign(t, h, "prod_004")

	rr := doReq(h, http.MethodPost, "/v1/search", `{"query":"nebula runner footwear","limit":1}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	var hits []SearchHit
	if err := json.Unmarshal(rr.Body.Bytes(), &hits); err != nil {
		t.Fatalf("decoding hits: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Title != "Nebula Runner 2025" {
		t.Errorf("top hit = %q, want Nebula Runner 2025", hits[0].Title)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	if rr := doReq(h, http.MethodPost, "/v1/search", `{"query":""}`, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", storage.ErrNotFound), http.StatusNotFound},
		{generation.ErrEmptyTopic, http.StatusBadRequest},
		{provider.Malformed("no caption"), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", resilience.ErrRetriesExhausted, provider.ErrTransient), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got, _ := errorStatus(c.err); got != c.code {
			t.Errorf("errorStatus(%v) = %d, want %d", c.err, got, c.code)
		}
	}
}
