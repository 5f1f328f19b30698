package resilience

import (
	"errors"
	"testing"
	"time"
)

// errDial stands in for the transport errors the request pipeline feeds the
// breaker; HTTP responses with error statuses never reach it.
var errDial = errors.New("dial tcp 140.82.112.6:443: connect: connection refused")

func tripBreaker(b *Breaker, failures int) {
	for i := 0; i < failures; i++ {
		_ = b.Execute(func() error { return errDial })
	}
}

func TestBreakerClosedPassesThrough(t *testing.T) {
	b := NewBreaker(5, 30*time.Second)

	called := false
	if err := b.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("call did not pass through a closed breaker")
	}
}

func TestBreakerOpensAfterConsecutiveTransportFailures(t *testing.T) {
	b := NewBreaker(5, 30*time.Second)

	// Four failures keep the circuit closed.
	tripBreaker(b, 4)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("closed after 4 failures, Execute: %v", err)
	}

	// The success reset the count; five straight failures open it.
	tripBreaker(b, 5)
	err := b.Execute(func() error {
		t.Fatal("call passed through an open breaker")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(5, 30*time.Second)
	b.now = func() time.Time { return now }

	tripBreaker(b, 5)

	// Before the timeout the remote gets no traffic at all.
	now = now.Add(29 * time.Second)
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen before timeout", err)
	}

	// After the timeout one probe goes through; its success closes the
	// circuit for everyone.
	now = now.Add(2 * time.Second)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateClosed {
		t.Fatalf("state = %d, want closed after probe success", b.state)
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(5, 30*time.Second)
	b.now = func() time.Time { return now }

	tripBreaker(b, 5)
	now = now.Add(31 * time.Second)

	// The probe still cannot reach the remote.
	_ = b.Execute(func() error { return errDial })

	b.mu.Lock()
	if b.state != stateOpen {
		b.mu.Unlock()
		t.Fatalf("state = %d, want open after probe failure", b.state)
	}
	b.mu.Unlock()

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen after reopen", err)
	}
}
