package apierr

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("vector", WithMaxFailures(2), WithResetTimeout(50*time.Millisecond))
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after 1 failure, got %v", cb.State())
	}
	_ = cb.Execute(func() error { return boom })
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 2 failures, got %v", cb.State())
	}

	if err := cb.Execute(func() error { t.Fatal("fn should not run while open"); return nil }); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("vector", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %v", cb.State())
	}

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe success to close circuit, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestErrorCodeMatching(t *testing.T) {
	err := New(CodeNodeNotFound, "no such node")
	if !errors.Is(err, New(CodeNodeNotFound, "different message")) {
		t.Errorf("expected errors.Is to match by code")
	}
	if errors.Is(err, New(CodeNodeExists, "x")) {
		t.Errorf("expected errors.Is to not match differing codes")
	}
	if CodeOf(err) != CodeNodeNotFound {
		t.Errorf("CodeOf = %v", CodeOf(err))
	}
}
