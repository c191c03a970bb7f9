package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hrithiknl17/socialagent/internal/provider"
)

func fastPolicy(max int) Policy {
	return Policy{MaxRetries: max, InitialDelay: time.Millisecond}
}

func TestCall_SucceedsFirstTry(t *testing.T) {
	var calls atomic.Int32
	v, err := Call(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v != "ok" {
		t.Errorf("v = %q, want %q", v, "ok")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCall_RetriesQuotaThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	v, err := Call(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 0, fmt.Errorf("gemini: %w", provider.ErrQuotaExceeded)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v != 42 {
		t.Errorf("v = %d, want 42", v)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCall_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	_, err := Call(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, provider.ErrQuotaExceeded
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, provider.ErrQuotaExceeded) {
		t.Errorf("err = %v, should still match ErrQuotaExceeded", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCall_NonRetryableFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	sentinel := errors.New("boom")
	_, err := Call(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("non-retryable error should not be wrapped as exhausted")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCall_MalformedNotRetried(t *testing.T) {
	var calls atomic.Int32
	_, err := Call(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, provider.Malformed("no captions")
	})
	if !errors.Is(err, provider.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCall_BackoffDoubles(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxRetries:   4,
		InitialDelay: time.Millisecond,
		OnRetry: func(_ int, d time.Duration, _ error) {
			delays = append(delays, d)
		},
	}
	Call(context.Background(), p, func(context.Context) (int, error) {
		return 0, provider.ErrTransient
	})

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("got %d retries, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestCall_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 3, InitialDelay: time.Hour}

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := Call(ctx, p, func(context.Context) (int, error) {
			calls.Add(1)
			return 0, provider.ErrTransient
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not return after cancellation")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCall_CustomRetryable(t *testing.T) {
	retryMe := errors.New("retry me")
	p := fastPolicy(2)
	p.Retryable = func(err error) bool { return errors.Is(err, retryMe) }

	var calls atomic.Int32
	_, err := Call(context.Background(), p, func(context.Context) (int, error) {
		calls.Add(1)
		return 0, retryMe
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestPolicy_ZeroValueUsesDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	if p.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", p.MaxRetries, DefaultMaxRetries)
	}
	if p.Backoff(1) != 0 {
		t.Errorf("Backoff(1) = %v, want 0 for zero InitialDelay", p.Backoff(1))
	}
	d := DefaultPolicy()
	if d.Backoff(3) != 2*time.Second {
		t.Errorf("Backoff(3) = %v, want 2s", d.Backoff(3))
	}
}
