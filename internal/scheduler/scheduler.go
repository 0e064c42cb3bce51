package scheduler

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/pkg/idgen"
	"github.com/aireviewer/reviewerd/pkg/logger"
	"github.com/aireviewer/reviewerd/pkg/telemetry"
)

// DefaultMaxRetries is used for jobs submitted without an explicit override.
const DefaultMaxRetries = 3

// backoffBase is the base delay for exponential retry backoff: attempt N
// waits backoffBase * 2^(N-1).
const backoffBase = 5 * time.Second

// keyState tracks the PENDING/RUNNING slots for one lock key.
type keyState struct {
	pending *Job
	running *Job
}

// Scheduler is an in-process, lock-key-serialized job queue. It mirrors the
// teacher's per-key FIFO-plus-signal-channel dispatch shape, generalized
// from one fixed key (repository URL) to arbitrary caller-supplied lock
// keys and from reject-on-duplicate to PENDING-replace semantics.
type Scheduler struct {
	sync.Mutex

	keys map[string]*keyState

	// delayed holds jobs whose RunAt is still in the future, ordered by
	// insertion; the dispatch loop rechecks it every tick.
	delayed *list.List

	ready chan struct{}

	maxWorkers int
	cron       *cron.Cron

	telemetry *telemetry.Metrics
}

// New creates a Scheduler with the given worker concurrency.
func New(maxWorkers int, metrics *telemetry.Metrics) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Scheduler{
		keys:       make(map[string]*keyState),
		delayed:    list.New(),
		ready:      make(chan struct{}, 256),
		maxWorkers: maxWorkers,
		cron:       cron.New(),
		telemetry:  metrics,
	}
}

// Submit enqueues a job under lockKey, to run no earlier than now+delay.
//
//   - If lockKey has a PENDING job, it is replaced: the old job is dropped
//     and this one takes its slot with a fresh RunAt.
//   - If lockKey has a RUNNING job (and no PENDING job), this job is queued
//     as the single PENDING successor.
//   - Otherwise a new PENDING job is created.
//
// An empty lockKey gives the job a key of its own (its ID), so it never
// replaces or waits behind another job.
func (s *Scheduler) Submit(taskName string, payload interface{}, delay time.Duration, lockKey string) *Job {
	s.Lock()
	defer s.Unlock()

	job := &Job{
		ID:         idgen.NewID(),
		TaskName:   taskName,
		Payload:    payload,
		LockKey:    lockKey,
		RunAt:      time.Now().Add(delay),
		MaxRetries: DefaultMaxRetries,
		State:      JobStatePending,
	}
	if lockKey == "" {
		lockKey = job.ID
		job.LockKey = lockKey
	}

	ks, ok := s.keys[lockKey]
	if !ok {
		ks = &keyState{}
		s.keys[lockKey] = ks
	}

	if ks.pending != nil {
		logger.Get().Debug("replacing pending job",
			zap.String("lock_key", lockKey),
			zap.String("old_job_id", ks.pending.ID),
			zap.String("new_job_id", job.ID),
		)
		// The old job stays in s.delayed until dispatchReady's scan reaches
		// it; marking it superseded here keeps it from ever being dispatched.
		ks.pending.State = JobStateSuperseded
		if s.telemetry != nil {
			s.telemetry.RecordSchedulerReplace(context.Background(), taskName)
		}
	} else if s.telemetry != nil {
		s.telemetry.RecordSchedulerEnqueue(context.Background(), 1)
	}

	ks.pending = job
	s.delayed.PushBack(job)
	s.signalReady()

	return job
}

// Run starts the dispatch loop and maxWorkers worker goroutines; it blocks
// until ctx is cancelled, then drains in-flight handlers and returns.
func (s *Scheduler) Run(ctx context.Context, handler Handler) {
	var wg sync.WaitGroup
	work := make(chan *Job, s.maxWorkers*2)

	for i := 0; i < s.maxWorkers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, work, handler)
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	s.cron.Start()
	defer s.cron.Stop()

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case <-ticker.C:
			s.dispatchReady(ctx, work)
		case <-s.ready:
			s.dispatchReady(ctx, work)
		}
	}
}

// dispatchReady moves every job whose RunAt has arrived, and whose lock key
// has no job currently RUNNING, onto the work channel.
func (s *Scheduler) dispatchReady(ctx context.Context, work chan<- *Job) {
	s.Lock()
	now := time.Now()
	var toDispatch []*Job

	for e := s.delayed.Front(); e != nil; {
		next := e.Next()
		job := e.Value.(*Job)

		if job.State == JobStateSuperseded {
			// Dropped in favor of a later Submit for the same lock key.
			s.delayed.Remove(e)
			e = next
			continue
		}

		if job.State != JobStatePending || job.RunAt.After(now) {
			e = next
			continue
		}

		ks := s.keys[job.LockKey]
		if ks == nil || ks.running != nil || ks.pending != job {
			// Its key is busy, or this job is no longer the current
			// pending job for its key; leave it queued for the next tick.
			e = next
			continue
		}

		ks.running = job
		ks.pending = nil
		job.State = JobStateRunning
		s.delayed.Remove(e)
		toDispatch = append(toDispatch, job)
		e = next
	}
	s.Unlock()

	for _, job := range toDispatch {
		select {
		case work <- job:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, work <-chan *Job, handler Handler) {
	defer wg.Done()

	for job := range work {
		err := handler(job)
		s.complete(job, err)
	}
}

// complete transitions a finished job: DONE on success or exhausted
// retries, or back to PENDING with backoff if the error is retryable and
// retries remain.
func (s *Scheduler) complete(job *Job, err error) {
	s.Lock()
	defer s.Unlock()

	ks := s.keys[job.LockKey]

	if err != nil && reviewerr.IsRetryable(err) && job.Attempt < job.MaxRetries {
		job.Attempt++
		job.RunAt = time.Now().Add(backoffDelay(job.Attempt))
		job.State = JobStatePending

		if ks != nil {
			ks.running = nil
			if ks.pending == nil {
				ks.pending = job
			}
		}
		s.delayed.PushBack(job)

		if s.telemetry != nil {
			s.telemetry.RecordSchedulerRetry(context.Background(), job.TaskName)
		}
		s.signalReady()
		return
	}

	job.State = JobStateDone
	if s.telemetry != nil {
		s.telemetry.RecordSchedulerEnqueue(context.Background(), -1)
	}
	if ks != nil {
		ks.running = nil
		if ks.pending == nil && ks.running == nil {
			delete(s.keys, job.LockKey)
		}
	}
	s.signalReady()
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt-1)))
}

func (s *Scheduler) signalReady() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// AddCronJob registers a periodic housekeeping function (stale-token-cache
// sweep, monthly usage rollover logging) on the scheduler's own cron.Cron
// instance, started/stopped alongside Run.
func (s *Scheduler) AddCronJob(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// Stats reports the current queue depth for observability.
type Stats struct {
	PendingCount int
	RunningCount int
	KeyCount     int
}

func (s *Scheduler) Stats() Stats {
	s.Lock()
	defer s.Unlock()

	var stats Stats
	stats.KeyCount = len(s.keys)
	for _, ks := range s.keys {
		if ks.pending != nil {
			stats.PendingCount++
		}
		if ks.running != nil {
			stats.RunningCount++
		}
	}
	return stats
}
