package resilience

import (
	"context"
	"testing"
	"time"
)

func TestLimiterRegistry(t *testing.T) {
	reg := NewLimiterRegistry()
	reg.Register(RateLimiterConfig{Name: "api", MaxRequests: 2, Window: time.Hour})
	reg.Register(RateLimiterConfig{Name: "search", MaxRequests: 5, Window: time.Hour})

	ctx := context.Background()
	if err := reg.Acquire(ctx, "api"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := reg.Acquire(ctx, "unknown"); err != nil {
		t.Fatalf("unknown limiter should admit, got %v", err)
	}

	stats := reg.Stats()
	if stats["api"].CurrentUsage != 1 || stats["api"].AvailableRequests != 1 {
		t.Errorf("unexpected api stats %+v", stats["api"])
	}
	if stats["search"].CurrentUsage != 0 {
		t.Errorf("limiters must be independent, got %+v", stats["search"])
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "api" || names[1] != "search" {
		t.Errorf("unexpected names %v", names)
	}

	reg.ResetAll()
	if rl, _ := reg.Get("api"); rl.CurrentUsage() != 0 {
		t.Error("expected ResetAll to clear windows")
	}
}

func TestBreakerRegistry(t *testing.T) {
	reg := NewBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour})

	search := reg.Get("search")
	if reg.Get("search") != search {
		t.Fatal("expected the same breaker per class")
	}
	if search.Name() != "search" {
		t.Errorf("expected breaker named after class, got %q", search.Name())
	}

	profile := reg.Get("profile")
	search.RecordFailure()

	if !reg.AnyOpen() {
		t.Error("expected AnyOpen")
	}
	if profile.State() != StateClosed {
		t.Error("breakers must be independent per class")
	}

	stats := reg.Stats()
	if stats["search"].State != StateOpen || stats["search"].Failures != 1 {
		t.Errorf("unexpected search stats %+v", stats["search"])
	}

	reg.ResetAll()
	if reg.AnyOpen() {
		t.Error("expected all breakers closed after ResetAll")
	}
}
