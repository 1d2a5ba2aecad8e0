package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestExecuteBackoffSchedule(t *testing.T) {
	exec := NewExecutor(ExtractionConfig(3, 5*time.Second, 2*time.Second))
	exec.cfg.BreakerEnabled = false

	var waits []time.Duration
	exec.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	errRateLimited := errors.New("rate limited")
	errMalformed := errors.New("malformed")

	cases := []struct {
		name  string
		err   error
		waits []time.Duration
	}{
		{name: "rate limited grows", err: errRateLimited, waits: []time.Duration{5 * time.Second, 10 * time.Second}},
		{name: "other errors pause", err: errMalformed, waits: []time.Duration{2 * time.Second, 2 * time.Second}},
	}
	classifier := func(err error) ErrorClassification {
		mode := BackoffFixed
		if errors.Is(err, errRateLimited) {
			mode = BackoffExponential
		}
		return ErrorClassification{Retryable: true, RecordFailure: true, Backoff: mode}
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			waits = nil
			attempts, err := exec.ExecuteCounted(context.Background(), "recognize", func(context.Context) error {
				return tc.err
			}, classifier)
			if !errors.Is(err, tc.err) {
				t.Fatalf("ExecuteCounted() error = %v", err)
			}
			if attempts != 3 {
				t.Fatalf("expected 3 attempts, got %d", attempts)
			}
			if len(waits) != len(tc.waits) {
				t.Fatalf("unexpected waits %v", waits)
			}
			for i := range waits {
				if waits[i] != tc.waits[i] {
					t.Fatalf("wait %d = %s, want %s", i, waits[i], tc.waits[i])
				}
			}
		})
	}
}

func TestExecuteStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Hour,
		RetryMaxBackoff:     time.Hour,
		RetryMultiplier:     2,
	})
	exec.cfg.BreakerEnabled = false

	ctx, cancel := context.WithCancel(context.Background())
	errTemp := errors.New("temporary")
	attempts, err := exec.ExecuteCounted(ctx, "op", func(context.Context) error {
		cancel()
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}
