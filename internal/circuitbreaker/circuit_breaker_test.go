package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safebase-monitor/internal/logging"
)

var errBoom = errors.New("boom")

func newTestBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	cfg := &Config{
		Name:             "test",
		MaxFailures:      maxFailures,
		Timeout:          timeout,
		HalfOpenMaxCalls: 2,
	}
	return NewCircuitBreaker(cfg, logging.NewLogger(logging.LevelFatal, logging.FormatText))
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })

	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(2, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// Two successful probes close the circuit
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe 1 error = %v", err)
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe 2 error = %v", err)
	}

	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed after recovery", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(2, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })

	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errBoom })

	if cb.State() != StateOpen {
		t.Errorf("state = %s, want open after half-open failure", cb.State())
	}
}
