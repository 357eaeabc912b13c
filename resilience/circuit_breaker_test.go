package resilience

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/fetchguard/errors"
)

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: threshold,
		Timeout:          timeout,
	})
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_StartsInClosedState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", cb.State())
	}
	if !cb.CanExecute() {
		t.Error("closed breaker should allow execution")
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED below threshold, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN at threshold, got %s", cb.State())
	}
	if cb.CanExecute() {
		t.Error("expected CanExecute=false right after opening")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeoutAndReopenResetsClock(t *testing.T) {
	cb, clock := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	clock.Advance(29 * time.Second)
	if cb.CanExecute() {
		t.Fatal("expected CanExecute=false before cooldown")
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN before cooldown, got %s", cb.State())
	}

	clock.Advance(time.Second)
	if !cb.CanExecute() {
		t.Fatal("expected CanExecute=true once cooldown elapsed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %s", cb.State())
	}

	clock.Advance(29 * time.Second)
	if cb.CanExecute() {
		t.Error("expected cooldown clock to restart from the half-open failure")
	}
	clock.Advance(time.Second)
	if !cb.CanExecute() {
		t.Error("expected CanExecute=true after the restarted cooldown")
	}
}

func TestCircuitBreaker_StateIsLazy(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()

	clock.Advance(time.Hour)
	if cb.State() != StateOpen {
		t.Errorf("expected State to stay OPEN until CanExecute, got %s", cb.State())
	}
	cb.CanExecute()
	if cb.State() != StateHalfOpen {
		t.Errorf("expected HALF_OPEN after CanExecute, got %s", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterSuccessInHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.CanExecute()

	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected failures reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_SuccessClearsFailuresWhenClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.Failures() != 0 {
		t.Errorf("expected failures reset by success, got %d", cb.Failures())
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)

	err := cb.Execute(func() error { return stderrors.New("fail") })
	if err == nil || err.Error() != "fail" {
		t.Fatalf("expected the function error, got %v", err)
	}

	err = cb.Execute(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !stderrors.Is(err, errors.ErrBreakerOpen) {
		t.Errorf("expected breaker-open error, got %v", err)
	}
	if !stderrors.Is(err, errors.BreakerOpen("test")) {
		t.Errorf("expected breaker name in error, got %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	cb.RecordFailure()

	cb.Reset()

	stats := cb.Stats()
	if stats.State != StateClosed {
		t.Errorf("expected CLOSED after reset, got %s", stats.State)
	}
	if stats.Failures != 0 {
		t.Errorf("expected 0 failures after reset, got %d", stats.Failures)
	}
	if stats.LastFailureAt != nil {
		t.Errorf("expected no last failure after reset, got %v", stats.LastFailureAt)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []string
	)

	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "search",
		FailureThreshold: 1,
		Timeout:          time.Second,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			changes = append(changes, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	cb.now = clock.Now

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.CanExecute()
	cb.RecordSuccess()

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		"search:CLOSED->OPEN",
		"search:OPEN->HALF_OPEN",
		"search:HALF_OPEN->CLOSED",
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %v, got %v", want, changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], changes[i])
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1000, Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cb.CanExecute() {
				if i%2 == 0 {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
			}
		}(i)
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED under threshold, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(99), "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %s, want %s", tc.state, got, tc.want)
		}
	}
}
