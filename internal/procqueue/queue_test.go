package procqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"inkwell/internal/procqueue"
	"inkwell/internal/testsupport"
)

func TestSubmitRejectsDuplicateLiveJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(10, 1))

	release := make(chan struct{})
	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		<-release
		return nil
	}, nil)
	queue.Start(context.Background())
	defer func() {
		close(release)
		_ = queue.Shutdown()
	}()

	if !queue.Submit("/inbox/a.txt") {
		t.Fatal("first submission rejected")
	}
	if queue.Submit("/inbox/a.txt") {
		t.Fatal("duplicate submission accepted while job is live")
	}
	if !queue.Submit("/inbox/b.txt") {
		t.Fatal("distinct path rejected")
	}
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(2, 1))

	started := make(chan struct{})
	release := make(chan struct{})
	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		close(started)
		<-release
		return nil
	}, nil)
	queue.Start(context.Background())
	defer func() {
		close(release)
		_ = queue.Shutdown()
	}()

	// One job occupies the worker, two more fill the channel.
	if !queue.Submit("/inbox/f0.txt") {
		t.Fatal("first submission rejected")
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up first job")
	}
	for i := 1; i < 3; i++ {
		if !queue.Submit(fmt.Sprintf("/inbox/f%d.txt", i)) {
			t.Fatalf("submission %d rejected below capacity", i)
		}
	}
	if queue.Submit("/inbox/overflow.txt") {
		t.Fatal("submission accepted beyond capacity")
	}
}

func TestResubmissionAllowedAfterCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(10, 1))

	done := make(chan string, 4)
	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		done <- job.Path
		return nil
	}, nil)
	queue.Start(context.Background())

	if !queue.Submit("/inbox/repeat.txt") {
		t.Fatal("first submission rejected")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never processed")
	}

	deadline := time.After(5 * time.Second)
	for !queue.Submit("/inbox/repeat.txt") {
		select {
		case <-deadline:
			t.Fatal("resubmission rejected after completion")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestJobLifecycleAndRetention(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(20, 2))

	var mu sync.Mutex
	seen := make(map[string]bool)
	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		mu.Lock()
		seen[job.Path] = true
		mu.Unlock()
		if job.Path == "/inbox/bad.txt" {
			return errors.New("extraction failed")
		}
		return nil
	}, nil)
	queue.Start(context.Background())

	queue.Submit("/inbox/good.txt")
	queue.Submit("/inbox/bad.txt")
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	stats := queue.Stats()
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("completed = %d failed = %d, want 1 and 1", stats.Completed, stats.Failed)
	}

	recent := queue.Recent()
	if len(recent) != 2 {
		t.Fatalf("retained jobs = %d, want 2", len(recent))
	}
	for _, job := range recent {
		if job.Status != procqueue.StatusCompleted && job.Status != procqueue.StatusFailed {
			t.Fatalf("retained job %s has non-terminal status %q", job.Path, job.Status)
		}
		if job.ID == "" {
			t.Fatal("job missing correlation id")
		}
		if job.FinishedAt.Before(job.StartedAt) {
			t.Fatalf("job %s finished before it started", job.Path)
		}
	}
	if recent[len(recent)-1].Status == procqueue.StatusFailed && recent[len(recent)-1].Err == "" {
		t.Fatal("failed job retained without error message")
	}
}

func TestRetentionEvictsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(50, 1))
	cfg.Queue.RetainedJobs = 3

	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		return nil
	}, nil)
	queue.Start(context.Background())

	for i := 0; i < 6; i++ {
		if !queue.Submit(fmt.Sprintf("/inbox/n%d.txt", i)) {
			// Worker may still hold an earlier path live; retry briefly.
			time.Sleep(10 * time.Millisecond)
			i--
		}
	}
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	recent := queue.Recent()
	if len(recent) != 3 {
		t.Fatalf("retained jobs = %d, want 3", len(recent))
	}
}

func TestShutdownStopsSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(10, 1))

	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		return nil
	}, nil)
	queue.Start(context.Background())
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if queue.Submit("/inbox/late.txt") {
		t.Fatal("submission accepted after shutdown")
	}
	// Second shutdown is a no-op.
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("repeated Shutdown returned error: %v", err)
	}
}

func TestShutdownDrainsInFlightWorkAfterSignal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(10, 1))

	started := make(chan struct{})
	release := make(chan struct{})
	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil)

	// The daemon starts the queue detached from the signal context so that
	// a signal stops intake but lets the drain timeout govern in-flight work.
	signalCtx, stop := context.WithCancel(context.Background())
	queue.Start(context.WithoutCancel(signalCtx))

	if !queue.Submit("/inbox/slow.m4a") {
		t.Fatal("submission rejected")
	}
	<-started
	stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	recent := queue.Recent()
	if len(recent) != 1 {
		t.Fatalf("terminal jobs = %d, want 1", len(recent))
	}
	if recent[0].Status != procqueue.StatusCompleted {
		t.Fatalf("job status = %q (err %q), want completed despite the signal", recent[0].Status, recent[0].Err)
	}
}

func TestHandlerPanicMarksJobFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(10, 1))

	queue := procqueue.New(cfg, func(ctx context.Context, job *procqueue.Job) error {
		panic("unexpected content shape")
	}, nil)
	queue.Start(context.Background())

	queue.Submit("/inbox/poison.txt")
	if err := queue.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	stats := queue.Stats()
	if stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1 after panic", stats.Failed)
	}
}
