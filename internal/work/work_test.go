package work

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestClassifyPreservesChain(t *testing.T) {
	base := errors.New("connection dropped")
	err := Classify(ErrTransient, base)

	if !errors.Is(err, ErrTransient) {
		t.Error("expected errors.Is(err, ErrTransient)")
	}
	if !errors.Is(err, base) {
		t.Error("expected errors.Is(err, base)")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("did not expect ErrMalformed")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(ErrTransient, nil) != nil {
		t.Error("Classify(kind, nil) should be nil")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified transient", Classify(ErrTransient, errors.New("boom")), true},
		{"classified malformed", Classify(ErrMalformed, errors.New("bad json")), false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limit text", errors.New("API error: rate limit exceeded"), true},
		{"429 text", errors.New("status 429"), true},
		{"503 text", errors.New("upstream returned 503"), true},
		{"plain error", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	g := NewGate(1)
	calls := 0

	err := g.Do(context.Background(), "test", fastRetry(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Classify(ErrTransient, errors.New("flaky"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	g := NewGate(1)
	calls := 0

	err := g.Do(context.Background(), "test", fastRetry(), func(ctx context.Context) error {
		calls++
		return Classify(ErrTransient, errors.New("always down"))
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, ErrTransient) {
		t.Error("exhausted error should still match ErrTransient")
	}
}

func TestDoDoesNotRetryMalformed(t *testing.T) {
	g := NewGate(1)
	calls := 0

	err := g.Do(context.Background(), "test", fastRetry(), func(ctx context.Context) error {
		calls++
		return Classify(ErrMalformed, errors.New("bad payload"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (malformed must not be retried)", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	g := NewGate(1)
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetry()
	cfg.InitialBackoff = time.Hour // would hang without cancellation

	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, "test", cfg, func(ctx context.Context) error {
			return Classify(ErrTransient, errors.New("down"))
		})
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestGateBoundsConcurrency(t *testing.T) {
	const limit = 2
	g := NewGate(limit)

	var inFlight, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), "test", fastRetry(), func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > limit {
		t.Errorf("peak concurrency = %d, want <= %d", p, limit)
	}
}

func TestNewGateDefaultsOnBadLimit(t *testing.T) {
	// Must not panic and must still admit work.
	g := NewGate(0)
	err := g.Do(context.Background(), "test", fastRetry(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestDoErrorMentionsOperation(t *testing.T) {
	g := NewGate(1)
	err := g.Do(context.Background(), "score-batch", fastRetry(), func(ctx context.Context) error {
		return Classify(ErrTransient, errors.New("down"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "score-batch"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should mention %q", err, want)
	}
}
