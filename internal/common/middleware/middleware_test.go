package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestTokenBucketDrains(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !tb.Allow(ctx) {
			t.Fatalf("expected request %d within capacity to pass", i)
		}
	}
	if tb.Allow(ctx) {
		t.Fatalf("expected empty bucket to reject")
	}
}

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	kl := NewKeyedLimiter(time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !kl.AllowKey(ctx, "10.0.0.1") {
			t.Fatalf("expected request %d within quota to pass", i)
		}
	}
	if kl.AllowKey(ctx, "10.0.0.1") {
		t.Fatalf("expected quota exceeded for the same key")
	}
	// 其他 key 不受影响。
	if !kl.AllowKey(ctx, "10.0.0.2") {
		t.Fatalf("expected fresh key to pass")
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 20*time.Millisecond)
	ctx := context.Background()
	fail := func() error { return fmt.Errorf("boom") }

	for i := 0; i < 2; i++ {
		if err := cb.Call(ctx, fail); err == nil {
			t.Fatalf("expected failure to propagate")
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state after repeated failures, got %v", cb.State())
	}

	// 打开期间直接拒绝，不执行函数。
	ran := false
	if err := cb.Call(ctx, func() error { ran = true; return nil }); err == nil || ran {
		t.Fatalf("expected open breaker to reject without calling, err=%v ran=%v", err, ran)
	}

	// 冷却后半开试探，成功则闭合。
	time.Sleep(30 * time.Millisecond)
	if err := cb.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("expected half-open trial to pass: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed state after successful trial, got %v", cb.State())
	}
}
