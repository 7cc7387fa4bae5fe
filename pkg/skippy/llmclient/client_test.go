package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDoSucceedsAfterRetryableErrors(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Initial: time.Millisecond, Max: 10 * time.Millisecond}
	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &APIError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyDoStopsOnFatalError(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, Initial: time.Millisecond, Max: 10 * time.Millisecond}
	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return &APIError{StatusCode: 401}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("fatal error must not be retried, got %d attempts", attempts)
	}
}

func TestRetryPolicyDoExhaustsRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, Initial: time.Millisecond, Max: 5 * time.Millisecond}
	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return &APIError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("expected exhausted-retries error")
	}
	if attempts != 3 {
		t.Fatalf("expected 1 initial + 2 retries = 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{MaxRetries: 5, Initial: time.Millisecond, Max: 10 * time.Millisecond}
	err := policy.Do(ctx, func() error {
		return &APIError{StatusCode: 503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrKind
	}{
		{&APIError{StatusCode: 429}, ErrRateLimit},
		{&APIError{StatusCode: 408}, ErrTimeout},
		{&APIError{StatusCode: 500}, ErrRetryable},
		{&APIError{StatusCode: 401}, ErrFatal},
		{errors.New("connection refused"), ErrRetryable},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestRetryPolicyHonorsRetryAfter(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 1, Initial: time.Millisecond, Max: 50 * time.Millisecond}
	start := time.Now()
	attempts := 0
	_ = policy.Do(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return &APIError{StatusCode: 429, RetryAfterSec: 1}
		}
		return nil
	})
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected Retry-After to stretch the wait to the 50ms cap, waited %v", elapsed)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("retry took unexpectedly long")
	}
}
