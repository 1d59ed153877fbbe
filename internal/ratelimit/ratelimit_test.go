package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFirstCallDoesNotWait(t *testing.T) {
	l := New(100 * time.Millisecond)

	start := time.Now()
	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if took := time.Since(start); took > 50*time.Millisecond {
		t.Errorf("first call waited %v, want no wait", took)
	}
}

func TestSecondCallWaitsMinDelay(t *testing.T) {
	l := New(80 * time.Millisecond)
	ctx := context.Background()

	if err := l.Wait(ctx, "k"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "k"); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if took := time.Since(start); took < 60*time.Millisecond {
		t.Errorf("second call waited only %v, want about the min delay", took)
	}
}

func TestDistinctKeysDoNotBlockEachOther(t *testing.T) {
	l := New(200 * time.Millisecond)
	ctx := context.Background()

	if err := l.Wait(ctx, "a"); err != nil {
		t.Fatalf("Wait a: %v", err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "b"); err != nil {
		t.Fatalf("Wait b: %v", err)
	}
	if took := time.Since(start); took > 50*time.Millisecond {
		t.Errorf("different key waited %v, want no wait", took)
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	l := New(5 * time.Second)

	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k"); err == nil {
		t.Error("expected a context error while waiting")
	}
}
