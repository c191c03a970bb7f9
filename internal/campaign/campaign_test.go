package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hrithiknl17/socialagent/internal/storage"
)

func TestSave_PrependsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(storage.NewMemoryKV())

	for _, id := range []string{"c1", "c2", "c3"} {
		if err := h.Save(ctx, Campaign{ID: id, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	list, err := h.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d campaigns, want 3", len(list))
	}
	if list[0].ID != "c3" || list[2].ID != "c1" {
		t.Errorf("order = [%s %s %s], want [c3 c2 c1]", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestList_Empty(t *testing.T) {
	h := NewHistory(storage.NewMemoryKV())
	list, err := h.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List = %v, want empty non-nil slice", list)
	}
}

func TestSave_RoundTripsFields(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Campaign{
		ID:          "c1",
		ProductID:   "prod_001",
		ProductName: "Nebula Runner 2025",
		Caption:     "Run on starlight.",
		Hashtags:    []string{"#nebula", "#run"},
		ImageURI:    "data:image/png;base64,AAAA",
		CreatedAt:   created,
		Embedding:   []float32{0.1, 0.2},
	}
	if err := NewHistory(kv).Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := NewHistory(kv).Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProductName != c.ProductName || !got.CreatedAt.Equal(created) || len(got.Embedding) != 2 {
		t.Errorf("Get = %+v, want %+v", got, c)
	}
}

func TestGet_NotFound(t *testing.T) {
	h := NewHistory(storage.NewMemoryKV())
	if _, err := h.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(storage.NewMemoryKV())
	h.Save(ctx, Campaign{ID: "c1"})
	h.Save(ctx, Campaign{ID: "c2"})

	if err := h.Remove(ctx, "c2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list, _ := h.List(ctx)
	if len(list) != 1 || list[0].ID != "c1" {
		t.Errorf("List = %+v, want only c1", list)
	}
}
