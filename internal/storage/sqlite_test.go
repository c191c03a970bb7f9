package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var bg = context.Background()

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v1 == 0 || v1 != v2 {
		t.Errorf("schema version changed: %d -> %d", v1, v2)
	}
}

func TestKV_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKV_SetOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Get = %q, want %q", got, "two")
	}
}

func TestKV_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Set(ctx, "vector_index", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "vector_index")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("Get = %q, want %q", got, "[]")
	}
}

func TestKV_UpdateErrorLeavesValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("keep")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	boom := errors.New("boom")
	err := s.Update(ctx, "k", func(old []byte) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v, want boom", err)
	}
	got, _ := s.Get(ctx, "k")
	if string(got) != "keep" {
		t.Errorf("Get = %q, want %q", got, "keep")
	}
}

func TestKV_UpdateConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "list", func(old []byte) ([]byte, error) {
				var items []string
				if old != nil {
					if err := json.Unmarshal(old, &items); err != nil {
						return nil, err
					}
				}
				items = append(items, fmt.Sprintf("item-%d", i))
				return json.Marshal(items)
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	raw, err := s.Get(ctx, "list")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(items) != n {
		t.Errorf("got %d items, want %d", len(items), n)
	}
}

func TestKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"b", "a", "c"} {
		if err := s.Set(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("Keys = %v, want [a b c]", keys)
	}
}

func TestMemoryKV_Update(t *testing.T) {
	m := NewMemoryKV()
	ctx := context.Background()

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	err := m.Update(ctx, "k", func(old []byte) ([]byte, error) {
		if old != nil {
			t.Errorf("old = %q, want nil", old)
		}
		return []byte("v1"), nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Errorf("Get = %q, %v; want v1", got, err)
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j-claim-1", Type: "campaign", PayloadJSON: `{"product_id":"prod_001"}`}
	if err := s.EnqueueJob(bg, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(bg, []string{"campaign"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want %q", got.Status, JobRunning)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob(bg, []string{"campaign"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j-future", Type: "campaign", PayloadJSON: `{}`, RunAfter: time.Now().UTC().Add(time.Hour)}
	if err := s.EnqueueJob(bg, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	got, err := s.ClaimNextJob(bg, []string{"campaign"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestCompleteJob_RecordsResult(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(bg, Job{ID: "j-complete", Type: "campaign", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(bg, []string{"campaign"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob(bg, "j-complete", "camp-1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	got, err := s.GetJob(bg, "j-complete")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobCompleted {
		t.Errorf("Status = %q, want %q", got.Status, JobCompleted)
	}
	if got.Result != "camp-1" {
		t.Errorf("Result = %q, want %q", got.Result, "camp-1")
	}
}

func TestCompleteJob_NotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.CompleteJob(bg, "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFailJob_Reschedules(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(bg, Job{ID: "j-fail", Type: "campaign", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(bg, []string{"campaign"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	before := time.Now().UTC()
	if err := s.FailJob(bg, "j-fail", "quota exceeded"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := s.GetJob(bg, "j-fail")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobPending {
		t.Errorf("Status = %q, want %q", got.Status, JobPending)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", got.Attempts)
	}
	if got.LastError != "quota exceeded" {
		t.Errorf("LastError = %q, want %q", got.LastError, "quota exceeded")
	}
	if !got.RunAfter.After(before) {
		t.Errorf("RunAfter = %v, want after %v", got.RunAfter, before)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(bg, Job{ID: "j-fail-max", Type: "campaign", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(bg, []string{"campaign"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob(bg, "j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := s.GetJob(bg, "j-fail-max")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobFailed {
		t.Errorf("Status = %q, want %q", got.Status, JobFailed)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  2 * time.Second,
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		40: time.Hour,
	}
	for attempts, want := range cases {
		if got := RetryDelay(attempts); got != want {
			t.Errorf("RetryDelay(%d) = %v, want %v", attempts, got, want)
		}
	}
}

func TestEnqueueJob_RequiresIDAndType(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnqueueJob(bg, Job{Type: "campaign"}); err == nil {
		t.Error("expected error for job without id")
	}
	if err := s.EnqueueJob(bg, Job{ID: "x"}); err == nil {
		t.Error("expected error for job without type")
	}
}

func TestGetJob_TimestampsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	before := time.Now().UTC().Add(-time.Second)
	runAfter := time.Date(2030, 5, 6, 7, 8, 9, 123e6, time.UTC)
	if err := s.EnqueueJob(bg, Job{ID: "j-ts", Type: "campaign", PayloadJSON: `{}`, RunAfter: runAfter}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.GetJob(bg, "j-ts")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !got.RunAfter.Equal(runAfter) {
		t.Errorf("RunAfter = %v, want %v", got.RunAfter, runAfter)
	}
	if got.CreatedAt.Before(before) || got.CreatedAt.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("CreatedAt = %v, want about now", got.CreatedAt)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 10, 19, 16, 42, 3, 356e6, time.UTC)
	for _, raw := range []string{"2026-10-19 16:42:03.356", "2026-10-19T16:42:03.356Z"} {
		got, err := parseTimestamp(raw)
		if err != nil {
			t.Fatalf("parseTimestamp(%q): %v", raw, err)
		}
		if !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparsable timestamp")
	}
}

func TestFailJobPermanent(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(bg, Job{ID: "j-perm", Type: "campaign", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(bg, []string{"campaign"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJobPermanent(bg, "j-perm", "product not found"); err != nil {
		t.Fatalf("FailJobPermanent: %v", err)
	}

	got, err := s.GetJob(bg, "j-perm")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobFailed || got.Attempts != 1 {
		t.Errorf("status=%q attempts=%d, want failed/1", got.Status, got.Attempts)
	}
	if err := s.FailJobPermanent(bg, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
