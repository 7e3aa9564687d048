package application

import (
	"context"
	"testing"
	"time"

	"geocode-gateway/middleware/ratelimit/infra"
)

func TestConcurrencyService_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected acquire to succeed with nil pool")
	}
	release()
}

func TestConcurrencyService_AcquireAndRelease(t *testing.T) {
	svc := ConcurrencyService{Pool: infra.NewChanPool(1), AcquireTimeout: 10 * time.Millisecond}

	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatalf("expected second acquire to time out with pool full")
	}

	release()

	release2, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected acquire to succeed after release")
	}
	release2()
}

func TestConcurrencyService_HonorsContextCancel(t *testing.T) {
	svc := ConcurrencyService{Pool: infra.NewChanPool(1)}

	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := svc.Acquire(ctx); ok {
		t.Fatalf("expected acquire to fail with cancelled context")
	}
}
