// Package scheduler provides delayed, deduplicated, at-most-one-pending task
// dispatch keyed by a caller-supplied lock key. A job submitted under a
// lock key that is already PENDING replaces it; a job submitted while the
// same key is RUNNING is queued as the single PENDING successor.
package scheduler

import "time"

// JobState is a job's position in its lock key's lifecycle.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateRunning    JobState = "running"
	JobStateDone       JobState = "done"
	JobStateSuperseded JobState = "superseded"
)

// Job is one unit of work submitted to the Scheduler.
type Job struct {
	ID         string
	TaskName   string
	Payload    interface{}
	LockKey    string
	RunAt      time.Time
	Attempt    int
	MaxRetries int
	State      JobState
}

// Handler processes one Job. A returned error for which
// reviewerr.IsRetryable reports true triggers a backoff-and-retry up to the
// Job's MaxRetries; any other error, or exhausting retries, marks the job
// DONE (failed).
type Handler func(job *Job) error
