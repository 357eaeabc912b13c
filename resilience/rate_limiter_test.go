package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/fetchguard/errors"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRateLimiter_AdmitsUpToMaxWithoutBlocking(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 5, Window: time.Hour})

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: unexpected error %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no blocking, took %v", elapsed)
	}
	if rl.CurrentUsage() != 5 {
		t.Errorf("expected usage 5, got %d", rl.CurrentUsage())
	}
	if rl.AvailableRequests() != 0 {
		t.Errorf("expected 0 available, got %d", rl.AvailableRequests())
	}
}

func TestRateLimiter_BlocksNextRequestWithinWindow(t *testing.T) {
	window := 100 * time.Millisecond
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 3, Window: window})

	for i := 0; i < 3; i++ {
		if err := rl.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}

	start := time.Now()
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	elapsed := time.Since(start)

	if elapsed <= 0 {
		t.Errorf("expected the 4th acquire to block")
	}
	if elapsed > window+50*time.Millisecond {
		t.Errorf("expected wait <= window, got %v", elapsed)
	}
	if rl.CurrentUsage() > 3 {
		t.Errorf("window bound violated: usage %d", rl.CurrentUsage())
	}
}

func TestRateLimiter_WaitIsOldestPlusWindow(t *testing.T) {
	clock := newFakeClock()
	var waits []time.Duration

	rl := NewRateLimiter(RateLimiterConfig{
		Name:        "api",
		MaxRequests: 2,
		Window:      10 * time.Second,
		OnWait: func(name string, wait time.Duration) {
			waits = append(waits, wait)
		},
	})
	rl.now = clock.Now
	rl.sleep = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}

	ctx := context.Background()
	_ = rl.Acquire(ctx)
	clock.Advance(3 * time.Second)
	_ = rl.Acquire(ctx)

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if len(waits) != 1 {
		t.Fatalf("expected one wait, got %v", waits)
	}
	if waits[0] != 7*time.Second {
		t.Errorf("expected wait of 7s, got %v", waits[0])
	}
}

func TestRateLimiter_EvictsExpiredTimestamps(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 2, Window: time.Minute})
	rl.now = clock.Now

	_ = rl.Acquire(context.Background())
	_ = rl.Acquire(context.Background())

	clock.Advance(30 * time.Second)
	if rl.CurrentUsage() != 2 {
		t.Errorf("expected usage 2 inside window, got %d", rl.CurrentUsage())
	}

	clock.Advance(30 * time.Second)
	if rl.CurrentUsage() != 0 {
		t.Errorf("expected timestamps at the window edge to be evicted, got %d", rl.CurrentUsage())
	}
	if rl.AvailableRequests() != 2 {
		t.Errorf("expected 2 available, got %d", rl.AvailableRequests())
	}
}

func TestRateLimiter_CancelLeavesWindowUntouched(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 1, Window: time.Hour})
	_ = rl.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx)
	if !errors.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if rl.CurrentUsage() != 1 {
		t.Errorf("expected usage to stay 1, got %d", rl.CurrentUsage())
	}
}

func TestRateLimiter_ConcurrentCallersRespectBound(t *testing.T) {
	window := 80 * time.Millisecond
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 4, Window: window})

	var (
		mu       sync.Mutex
		admitted []time.Time
		wg       sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Acquire(context.Background()); err != nil {
				t.Errorf("unexpected error %v", err)
				return
			}
			mu.Lock()
			admitted = append(admitted, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(admitted) != 10 {
		t.Fatalf("expected 10 admissions, got %d", len(admitted))
	}
	if rl.CurrentUsage() > 4 {
		t.Errorf("window bound violated: usage %d", rl.CurrentUsage())
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", MaxRequests: 2, Window: time.Hour})
	_ = rl.Acquire(context.Background())
	_ = rl.Acquire(context.Background())

	rl.Reset()

	stats := rl.Stats()
	if stats.CurrentUsage != 0 || stats.AvailableRequests != 2 {
		t.Errorf("unexpected stats after reset: %+v", stats)
	}
	if stats.Name != "test" || stats.Window != time.Hour {
		t.Errorf("unexpected stats identity: %+v", stats)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "zero"})
	if rl.MaxRequests() != 30 {
		t.Errorf("expected default max 30, got %d", rl.MaxRequests())
	}
	if rl.Window() != time.Minute {
		t.Errorf("expected default window 1m, got %v", rl.Window())
	}
}

func TestSleep(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		cancel  bool
		wantErr bool
	}{
		{"zero duration", 0, false, false},
		{"negative duration", -time.Second, false, false},
		{"short sleep", time.Millisecond, false, false},
		{"cancelled", time.Hour, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			if tc.cancel {
				cancel()
			} else {
				defer cancel()
			}
			err := Sleep(ctx, tc.d)
			if (err != nil) != tc.wantErr {
				t.Errorf("Sleep() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
