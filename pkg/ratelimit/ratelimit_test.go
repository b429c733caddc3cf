package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockFirstCall(t *testing.T) {
	limiter := NewLimiter(DefaultIntervals(), nil)

	start := time.Now()
	if err := limiter.Wait(context.Background(), ClassSearch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("first call of a class should not block")
	}
}

func TestLimiter_EnforcesSpacing(t *testing.T) {
	interval := 80 * time.Millisecond
	limiter := NewLimiter(map[Class]time.Duration{ClassSearch: interval}, nil)

	ctx := context.Background()
	_ = limiter.Wait(ctx, ClassSearch)

	start := time.Now()
	if err := limiter.Wait(ctx, ClassSearch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed := time.Since(start); elapsed < interval-5*time.Millisecond {
		t.Errorf("second call returned after %v, want >= %v", elapsed, interval)
	}
}

func TestLimiter_ClassesIndependent(t *testing.T) {
	limiter := NewLimiter(map[Class]time.Duration{
		ClassSearch: 500 * time.Millisecond,
		ClassDetail: 500 * time.Millisecond,
	}, nil)

	ctx := context.Background()
	_ = limiter.Wait(ctx, ClassSearch)

	// A detail call right after a search call must not inherit the search
	// class's spacing.
	start := time.Now()
	if err := limiter.Wait(ctx, ClassDetail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("detail class blocked by search class spacing")
	}
}

func TestLimiter_UnknownClassNeverBlocks(t *testing.T) {
	limiter := NewLimiter(map[Class]time.Duration{ClassSearch: time.Second}, nil)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, Class("scrape")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("unknown class should never block")
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(map[Class]time.Duration{ClassSearch: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_ = limiter.Wait(ctx, ClassSearch)
	cancel()

	if err := limiter.Wait(ctx, ClassSearch); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestLimiter_CountsCalls(t *testing.T) {
	limiter := NewLimiter(nil, nil)

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_ = limiter.Wait(ctx, ClassSearch)
	}
	_ = limiter.Wait(ctx, ClassDetail)

	if got := limiter.Calls(); got != 8 {
		t.Errorf("Calls() = %d, want 8", got)
	}
}

func TestLimiter_ConcurrentSpacing(t *testing.T) {
	interval := 30 * time.Millisecond
	limiter := NewLimiter(map[Class]time.Duration{ClassDetail: interval}, nil)

	ctx := context.Background()
	const n = 4

	times := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		go func() {
			if err := limiter.Wait(ctx, ClassDetail); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			times <- time.Now()
		}()
	}

	stamps := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		stamps = append(stamps, <-times)
	}

	// Sort and verify consecutive admissions are at least one interval apart.
	for i := 0; i < len(stamps); i++ {
		for j := i + 1; j < len(stamps); j++ {
			if stamps[j].Before(stamps[i]) {
				stamps[i], stamps[j] = stamps[j], stamps[i]
			}
		}
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < interval-10*time.Millisecond {
			t.Errorf("admissions %d and %d only %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestSleep_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Second); err == nil {
		t.Fatalf("expected context error")
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep should not error: %v", err)
	}
}
