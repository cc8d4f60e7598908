package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mb_scrooper/config"
)

func TestScheduler_Interval(t *testing.T) {
	var runs, hooks atomic.Int32
	done := make(chan struct{}, 10)

	s := New(config.SchedulerConfig{Interval: 10 * time.Millisecond}, RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.AfterRun(func(ctx context.Context) {
		hooks.Add(1)
		done <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduler did not run")
		}
	}
	s.Stop()

	if runs.Load() < 2 || hooks.Load() < 2 {
		t.Fatalf("expected at least 2 runs and hooks, got %d/%d", runs.Load(), hooks.Load())
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	s := New(config.SchedulerConfig{Cron: "not a cron"}, RunnerFunc(func(ctx context.Context) error { return nil }))
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected cron parse error")
	}
}

func TestScheduler_NoSchedule(t *testing.T) {
	s := New(config.SchedulerConfig{}, RunnerFunc(func(ctx context.Context) error { return nil }))
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error without schedule")
	}
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s := New(config.SchedulerConfig{}, RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}))

	go s.TriggerNow(context.Background())
	<-started
	s.TriggerNow(context.Background())
	close(release)

	if runs.Load() != 1 {
		t.Fatalf("expected overlapping trigger to be skipped, got %d runs", runs.Load())
	}
}
