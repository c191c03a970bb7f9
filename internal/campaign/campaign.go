// Package campaign persists generated marketing campaigns.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hrithiknl17/socialagent/internal/storage"
)

// DefaultKey is the KV key holding the campaign collection.
const DefaultKey = "content_db_records"

// ErrNotFound is returned by Get for an unknown campaign ID.
var ErrNotFound = errors.New("campaign not found")

// Campaign is the result of one successful orchestration run.
type Campaign struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Caption     string    `json:"caption"`
	Hashtags    []string  `json:"hashtags"`
	ImageURI    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Embedding   []float32 `json:"embedding"`
}

// History is the newest-first campaign collection stored under one KV key.
type History struct {
	kv  storage.KV
	key string
}

// NewHistory returns a History persisted in kv under DefaultKey.
func NewHistory(kv storage.KV) *History {
	return &History{kv: kv, key: DefaultKey}
}

// Save prepends c to the collection.
func (h *History) Save(ctx context.Context, c Campaign) error {
	if c.ID == "" {
		return errors.New("campaign has no id")
	}
	return h.kv.Update(ctx, h.key, func(old []byte) ([]byte, error) {
		list, err := decode(old)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append([]Campaign{c}, list...))
	})
}

// List returns all campaigns, newest first.
func (h *History) List(ctx context.Context) ([]Campaign, error) {
	raw, err := h.kv.Get(ctx, h.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Campaign{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading campaigns: %w", err)
	}
	return decode(raw)
}

// Get returns the campaign with id, or ErrNotFound.
func (h *History) Get(ctx context.Context, id string) (Campaign, error) {
	list, err := h.List(ctx)
	if err != nil {
		return Campaign{}, err
	}
	for _, c := range list {
		if c.ID == id {
			return c, nil
		}
	}
	return Campaign{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Remove deletes the campaign with id. Removing an absent id is a no-op.
func (h *History) Remove(ctx context.Context, id string) error {
	return h.kv.Update(ctx, h.key, func(old []byte) ([]byte, error) {
		list, err := decode(old)
		if err != nil {
			return nil, err
		}
		kept := list[:0]
		for _, c := range list {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		return json.Marshal(kept)
	})
}

func decode(raw []byte) ([]Campaign, error) {
	if len(raw) == 0 {
		return []Campaign{}, nil
	}
	var list []Campaign
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decoding campaigns: %w", err)
	}
	if list == nil {
		list = []Campaign{}
	}
	return list, nil
}
