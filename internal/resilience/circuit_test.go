package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

func fail(_ context.Context) error { return errors.New("fail") }

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	if !cb.Tripped() {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.Record(errors.New("a"))
	cb.Record(errors.New("b"))
	cb.Record(nil)
	cb.Record(errors.New("c"))

	if cb.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", cb.Failures())
	}
	if cb.Tripped() {
		t.Error("breaker should still be closed")
	}
}

func TestCircuitBreaker_ShouldTripIgnoresOtherErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ShouldTrip:       func(err error) bool { return errors.Is(err, model.ErrStoreUnavailable) },
	})

	store := fmt.Errorf("write: %w", model.ErrStoreUnavailable)
	cb.Record(store)
	cb.Record(fmt.Errorf("s4: %w", model.ErrGeneration))
	if cb.Failures() != 1 {
		t.Fatalf("generation error should not count or reset, got %d", cb.Failures())
	}
	cb.Record(store)
	if !cb.Tripped() {
		t.Error("expected open after two store failures")
	}
}

func TestCircuitBreaker_NoResetTimeoutStaysOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	now := time.Now()
	cb.nowFunc = func() time.Time { return now }
	cb.Record(errors.New("down"))

	cb.nowFunc = func() time.Time { return now.Add(24 * time.Hour) }
	if cb.State() != CircuitOpen {
		t.Errorf("expected open, got %s", cb.State())
	}
	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     100 * time.Millisecond,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	now := time.Now()
	cb.nowFunc = func() time.Time { return now }
	_ = cb.Execute(context.Background(), fail)

	cb.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	// A failed trial call reopens.
	_ = cb.Execute(context.Background(), fail)
	cb.nowFunc = func() time.Time { return now.Add(250 * time.Millisecond) }
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after failed trial call, got %s", cb.State())
	}

	cb.nowFunc = func() time.Time { return now.Add(time.Second) }
	if err := cb.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("trial call should pass: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}

	want := []string{"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	v, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("got %d, %v", v, err)
	}
}

func TestCircuitState_String(t *testing.T) {
	if CircuitState(9).String() != "unknown" {
		t.Error("expected unknown")
	}
}
