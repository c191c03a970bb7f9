// Package vectorindex is an append-only similarity index over documents
// persisted as a single JSON collection in a storage.KV.
//
// Search is an exhaustive cosine scan. There is no ANN structure; the index
// is expected to hold at most a few thousand campaigns.
package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/hrithiknl17/socialagent/internal/storage"
)

// DefaultKey is the KV key holding the document collection.
const DefaultKey = "vector_index"

var (
	ErrEmptyEmbedding = errors.New("document has an empty embedding")
	ErrDuplicateID    = errors.New("document id already indexed")
	ErrMissingID      = errors.New("document has no id")
)

// Document is an indexed item.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

// Scored is a search hit.
type Scored struct {
	Document
	Score float32 `json:"score"`
}

// Index reads and writes the document collection stored under one KV key.
type Index struct {
	kv  storage.KV
	key string
}

// New returns an Index persisted in kv under DefaultKey.
func New(kv storage.KV) *Index {
	return &Index{kv: kv, key: DefaultKey}
}

// Add appends doc. The write is an atomic read-modify-write of the whole
// collection so concurrent adds are never lost.
func (x *Index) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return ErrMissingID
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyEmbedding, doc.ID)
	}
	doc.Embedding = append([]float32(nil), doc.Embedding...)

	return x.kv.Update(ctx, x.key, func(old []byte) ([]byte, error) {
		docs, err := decode(old)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if d.ID == doc.ID {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
			}
		}
		return json.Marshal(append(docs, doc))
	})
}

// Remove deletes the document with id. Removing an absent id is a no-op.
func (x *Index) Remove(ctx context.Context, id string) error {
	return x.kv.Update(ctx, x.key, func(old []byte) ([]byte, error) {
		docs, err := decode(old)
		if err != nil {
			return nil, err
		}
		kept := docs[:0]
		for _, d := range docs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		return json.Marshal(kept)
	})
}

// All returns every document in insertion order.
func (x *Index) All(ctx context.Context) ([]Document, error) {
	raw, err := x.kv.Get(ctx, x.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading vector index: %w", err)
	}
	return decode(raw)
}

// Len returns the number of indexed documents.
func (x *Index) Len(ctx context.Context) (int, error) {
	docs, err := x.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Search returns up to topK documents ordered by descending cosine
// similarity to query. Ties keep insertion order. Documents whose embedding
// length differs from the query are skipped.
func (x *Index) Search(ctx context.Context, query []float32, topK int) ([]Scored, error) {
	docs, err := x.All(ctx)
	if err != nil {
		return nil, err
	}
	if topK <= 0 || len(docs) == 0 {
		return []Scored{}, nil
	}

	results := make([]Scored, 0, len(docs))
	queryNorm := norm(query)
	skipped := 0
	for _, d := range docs {
		if len(d.Embedding) != len(query) {
			skipped++
			continue
		}
		results = append(results, Scored{Document: d, Score: cosine(query, d.Embedding, queryNorm)})
	}
	if skipped > 0 {
		slog.Warn("vectorindex: skipped documents with mismatched dimensions",
			"skipped", skipped, "query_dims", len(query))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Cosine returns dot(a,b) / (|a|*|b|). A zero denominator is treated as 1,
// so a zero vector scores 0 against everything. Vectors of different length
// score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, b, norm(a))
}

func decode(raw []byte) ([]Document, error) {
	if len(raw) == 0 {
		return []Document{}, nil
	}
	var docs []Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decoding vector index: %w", err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is the precomputed L2 norm
// of a; callers guarantee len(a) == len(b).
func cosine(a, b []float32, aNorm float64) float32 {
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	denom := aNorm * math.Sqrt(bNormSq)
	if denom == 0 {
		denom = 1
	}
	return float32(dot / denom)
}
