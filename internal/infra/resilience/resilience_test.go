package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
)

func fastConfig(retries int) resilience.Config {
	return resilience.Config{MaxRetries: retries, InitialBackoff: time.Millisecond}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(3), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(2), func() error {
		callCount++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(5), func() error {
		callCount++
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "bad password"})
	})

	if !resilience.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected a single attempt, got %d", callCount)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestCall_UnwrapsPermanentError(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-permanent")

	err := resilience.Call(context.Background(), cb, fastConfig(2), "identity/signin", func() error {
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "Email ou senha inválidos"})
	})

	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %T %v", err, err)
	}
	var external *domain.ErrExternalService
	if errors.As(err, &external) {
		t.Error("permanent errors must not be reported as external failures")
	}
}

func TestCall_WrapsTransientError(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-transient")

	err := resilience.Call(context.Background(), cb, fastConfig(1), "firestore/get", func() error {
		return errors.New("unavailable")
	})

	var external *domain.ErrExternalService
	if !errors.As(err, &external) || external.Service != "firestore/get" {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestCall_OpensCircuit(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-open")
	cfg := fastConfig(0)

	for i := 0; i < 5; i++ {
		_ = resilience.Call(context.Background(), cb, cfg, "svc", func() error {
			return errors.New("down")
		})
	}

	err := resilience.Call(context.Background(), cb, cfg, "svc", func() error { return nil })
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCall_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-no-trip")
	cfg := fastConfig(0)

	for i := 0; i < 10; i++ {
		_ = resilience.Call(context.Background(), cb, cfg, "svc", func() error {
			return resilience.Permanent(&domain.ErrConflict{Message: "exists"})
		})
	}

	if err := resilience.Call(context.Background(), cb, cfg, "svc", func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestCall_MapsDeadline(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-deadline")

	err := resilience.Call(context.Background(), cb, fastConfig(0), "svc", func() error {
		return context.DeadlineExceeded
	})

	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected Do after release, got %v", err)
	}
}
