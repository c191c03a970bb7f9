// Package agent runs the campaign pipeline: product lookup, similarity
// retrieval over past campaigns, content and image generation, persistence
// and indexing. Each run reports its progress as a stream of events.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/composer"
	"github.com/hrithiknl17/socialagent/internal/generation"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/vectorindex"
)

const (
	DefaultTopK      = 2
	DefaultThreshold = 0.8

	eventBuffer = 64
)

// Catalog looks up products.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Generator produces embeddings, campaign copy and images.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	CampaignContent(ctx context.Context, p catalog.Product, contextNote string) (provider.TextResult, error)
	Image(ctx context.Context, prompt string) (string, error)
}

// Index is the similarity index over past campaigns.
type Index interface {
	Search(ctx context.Context, query []float32, topK int) ([]vectorindex.Scored, error)
	Add(ctx context.Context, doc vectorindex.Document) error
}

// History persists campaigns.
type History interface {
	Save(ctx context.Context, c campaign.Campaign) error
	Remove(ctx context.Context, id string) error
}

// Orchestrator runs campaigns. It is safe for concurrent use; each run owns
// its own event stream.
type Orchestrator struct {
	catalog   Catalog
	gen       Generator
	index     Index
	history   History
	topK      int
	threshold float32
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many similar campaigns are retrieved.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithThreshold sets the similarity above which a context note is attached.
func WithThreshold(t float32) Option {
	return func(o *Orchestrator) { o.threshold = t }
}

// New returns an Orchestrator wired to its collaborators.
func New(cat Catalog, gen Generator, idx Index, hist History, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:   cat,
		gen:       gen,
		index:     idx,
		history:   hist,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is an in-flight campaign run.
type Run struct {
	ID string

	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	log    []Event
	stage  Stage
	result campaign.Campaign
	err    error
}

// Events streams the run's events. The channel is closed when the run ends.
// Events are buffered; a consumer that falls far behind misses events on the
// channel. Follow delivers all of them.
func (r *Run) Events() <-chan Event { return r.events }

// Follow calls fn for every event of the run in order, including any the
// Events channel dropped, and returns when the run ends. The channel is used
// only as a wake-up; events are read from the log.
func (r *Run) Follow(fn func(Event)) {
	sent := 0
	deliver := func() {
		for _, ev := range r.logFrom(sent) {
			fn(ev)
			sent++
		}
	}
	for range r.events {
		deliver()
	}
	deliver()
}

func (r *Run) logFrom(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= len(r.log) {
		return nil
	}
	return append([]Event(nil), r.log[n:]...)
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its outcome.
func (r *Run) Wait() (campaign.Campaign, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Log returns every event emitted so far.
func (r *Run) Log() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.log...)
}

// Stage returns the stage the run is in.
func (r *Run) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Start launches a run for productID in its own goroutine.
func (o *Orchestrator) Start(ctx context.Context, productID string) *Run {
	r := &Run{
		ID:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		stage:  StageFetchingContext,
	}
	go func() {
		c, err := o.execute(ctx, r, productID)
		r.mu.Lock()
		r.result, r.err = c, err
		r.mu.Unlock()
		close(r.events)
		close(r.done)
	}()
	return r
}

// Execute runs a campaign synchronously and returns it with the event log.
func (o *Orchestrator) Execute(ctx context.Context, productID string) (campaign.Campaign, []Event, error) {
	r := o.Start(ctx, productID)
	c, err := r.Wait()
	return c, r.Log(), err
}

func (o *Orchestrator) execute(ctx context.Context, r *Run, productID string) (campaign.Campaign, error) {
	logger := slog.With("run_id", r.ID, "product_id", productID)
	ctx = generation.ContextWithRetryHook(ctx, func(call string, attempt int, delay time.Duration, err error) {
		o.emit(r, r.Stage(), "Provider", SeverityWarning,
			fmt.Sprintf("Provider call %s failed (attempt %d), retrying in %s: %v", call, attempt, delay, err))
	})

	fail := func(err error) (campaign.Campaign, error) {
		logger.Warn("agent: run failed", "stage", r.Stage(), "error", err)
		o.emit(r, StageErrored, "Error", SeverityError, err.Error())
		return campaign.Campaign{}, err
	}

	// 1. Product context.
	o.emit(r, StageFetchingContext, "Catalog", SeverityInfo, fmt.Sprintf("Fetching product details for ID: %s...", productID))
	product, err := o.catalog.Get(ctx, productID)
	if err != nil {
		return fail(err)
	}
	o.emit(r, StageFetchingContext, "Catalog", SeveritySuccess, fmt.Sprintf("Retrieved: %s ($%.2f)", product.Title, product.Price))

	// 2. Query embedding, reused unchanged for the index entry.
	o.emit(r, StageEmbeddingQuery, "Vector DB", SeverityInfo, "Generating embedding for context search...")
	embedding, err := o.gen.Embed(ctx, product.Title+" "+product.Category)
	if err != nil {
		return fail(fmt.Errorf("embedding product: %w", err))
	}
	o.emit(r, StageEmbeddingQuery, "Vector DB", SeveritySuccess, fmt.Sprintf("Embedding ready (%d dimensions).", len(embedding)))

	// 3. Similar past campaigns.
	o.emit(r, StageRetrievingSimilar, "Vector DB", SeverityInfo, "Querying vector index for similar past campaigns...")
	matches, err := o.index.Search(ctx, embedding, o.topK)
	if err != nil {
		return fail(fmt.Errorf("searching similar campaigns: %w", err))
	}
	note := composer.SimilarityNote(matches, o.threshold)
	if note != "" {
		o.emit(r, StageRetrievingSimilar, "Vector DB", SeverityWarning,
			fmt.Sprintf("Found %d similar past campaigns. Adjusting creativity to avoid duplicates.", len(matches)))
	} else {
		o.emit(r, StageRetrievingSimilar, "Vector DB", SeveritySuccess, "No similar semantic matches found. Context is clear.")
	}

	// 4. Copy.
	o.emit(r, StageGeneratingText, "Generator", SeverityInfo, "Orchestrating prompt with retrieved context...")
	content, err := o.gen.CampaignContent(ctx, product, note)
	if err != nil {
		return fail(fmt.Errorf("generating campaign text: %w", err))
	}
	o.emit(r, StageGeneratingText, "Generator", SeveritySuccess, "Text content generated successfully.")

	// 5. Visual.
	o.emit(r, StageGeneratingImage, "Image", SeverityInfo, "Generating marketing visual...")
	imageURI, err := o.gen.Image(ctx, content.ImagePrompt)
	if err != nil {
		return fail(fmt.Errorf("generating campaign image: %w", err))
	}
	o.emit(r, StageGeneratingImage, "Image", SeveritySuccess, "Visual asset rendered.")

	c := campaign.Campaign{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Title,
		Caption:     content.Caption,
		Hashtags:    content.Hashtags,
		ImageURI:    imageURI,
		CreatedAt:   o.now().UTC(),
		Embedding:   embedding,
	}

	// 6. Persist.
	o.emit(r, StagePersisting, "Database", SeverityInfo, "Saving campaign to content history...")
	if err := o.history.Save(ctx, c); err != nil {
		return fail(fmt.Errorf("saving campaign: %w", err))
	}
	o.emit(r, StagePersisting, "Database", SeveritySuccess, fmt.Sprintf("Campaign %s saved.", c.ID))

	// 7. Index. A campaign is never left persisted without its document.
	o.emit(r, StageIndexing, "Vector DB", SeverityInfo, "Indexing new campaign embedding for future retrieval...")
	doc := vectorindex.Document{
		ID:        c.ID,
		Content:   product.Title + " " + product.Category + " " + c.Caption,
		Metadata:  map[string]string{"title": product.Title},
		Embedding: embedding,
	}
	if err := o.index.Add(ctx, doc); err != nil {
		if rbErr := o.history.Remove(context.WithoutCancel(ctx), c.ID); rbErr != nil {
			logger.Error("agent: rollback of unindexed campaign failed", "campaign_id", c.ID, "error", rbErr)
		}
		return fail(fmt.Errorf("indexing campaign: %w", err))
	}
	o.emit(r, StageIndexing, "Vector DB", SeveritySuccess, "Campaign indexed.")

	o.emit(r, StageCompleted, "Agent", SeveritySuccess, "Workflow completed successfully.")
	logger.Info("agent: campaign completed", "campaign_id", c.ID)
	return c, nil
}

// emit records ev in the run log and offers it to the event channel without
// blocking.
func (o *Orchestrator) emit(r *Run, stage Stage, step string, sev Severity, msg string) {
	ev := Event{
		Step:      step,
		Stage:     stage,
		Message:   msg,
		Timestamp: o.now().UTC(),
		Severity:  sev,
	}

	r.mu.Lock()
	r.stage = stage
	r.log = append(r.log, ev)
	r.mu.Unlock()

	select {
	case r.events <- ev:
	default:
		slog.Debug("agent: event channel full, event kept in log only", "run_id", r.ID)
	}
}
