package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobs(t *testing.T) {
	var count int32
	sched := NewScheduler(10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sched.Add("count", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	sched.Add("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	if c := atomic.LoadInt32(&count); c < 2 {
		t.Fatalf("expected immediate run plus ticks, got %d", c)
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	var count int32
	sched := NewScheduler(time.Hour, nil)
	sched.Add("count", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	if c := atomic.LoadInt32(&count); c != 1 {
		t.Fatalf("expected exactly one run, got %d", c)
	}
}
