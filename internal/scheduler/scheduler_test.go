package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aireviewer/reviewerd/internal/reviewerr"
)

func TestSubmitReplacesPending(t *testing.T) {
	s := New(2, nil)

	first := s.Submit("review", "payload-1", time.Hour, "pr:owner/repo:1")
	second := s.Submit("review", "payload-2", time.Hour, "pr:owner/repo:1")

	if first.ID == second.ID {
		t.Fatal("expected a new job ID for the replacement")
	}

	stats := s.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1 (replace, not append)", stats.PendingCount)
	}
}

func TestRunDispatchesAndCompletes(t *testing.T) {
	s := New(2, nil)

	var processed int32
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, func(job *Job) error {
		atomic.AddInt32(&processed, 1)
		close(done)
		return nil
	})

	s.Submit("review", "payload", 0, "pr:owner/repo:1")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	// Give complete() a moment to run after the handler returns.
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&processed) != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	stats := s.Stats()
	if stats.RunningCount != 0 {
		t.Errorf("RunningCount = %d, want 0 after completion", stats.RunningCount)
	}
}

func TestSameLockKeySerializes(t *testing.T) {
	s := New(4, nil)

	var mu sync.Mutex
	var order []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go s.Run(ctx, func(job *Job) error {
		defer wg.Done()
		mu.Lock()
		order = append(order, job.Payload.(string))
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	s.Submit("review", "first", 0, "pr:owner/repo:9")
	time.Sleep(5 * time.Millisecond) // ensure "first" starts running before "second" is submitted
	s.Submit("review", "second", 0, "pr:owner/repo:9")

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

func TestRetryableErrorIsRetried(t *testing.T) {
	s := New(1, nil)

	var attempts int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, func(job *Job) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return reviewerr.New(reviewerr.KindHostingTransient, "transient failure")
		}
		return nil
	})

	s.Submit("review", "payload", 0, "pr:owner/repo:retry")

	// The first retry is delayed by backoffBase (5 s).
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&attempts) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&attempts); got < 2 {
		t.Fatalf("attempts = %d, want >= 2 (retry on transient error)", got)
	}
}

func TestNonRetryableErrorIsNotRetried(t *testing.T) {
	s := New(1, nil)

	var attempts int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, func(job *Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("plain, non-retryable failure")
	})

	s.Submit("review", "payload", 0, "pr:owner/repo:noretry")

	time.Sleep(300 * time.Millisecond)

	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want exactly 1 (no retry for a non-retryable error)", got)
	}
}
