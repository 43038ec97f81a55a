package domain

import (
	"context"
	"strconv"
	"time"
)

// State is a Review Job's position in the Orchestrator's state machine.
type State string

const (
	StateAdmitting  State = "admitting"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StatePrompting  State = "prompting"
	StateParsing    State = "parsing"
	StatePublishing State = "publishing"
	StateReporting  State = "reporting" // terminal
	StateSkipped    State = "skipped"   // terminal
	StateFailed     State = "failed"    // terminal
)

func (s State) Terminal() bool {
	return s == StateReporting || s == StateSkipped || s == StateFailed
}

// Job is created by the Orchestrator from an admitted Envelope. It is owned
// exclusively by the Orchestrator goroutine running it for its lifetime and
// is never resumed across restarts.
type Job struct {
	ID         string
	Repo       Repo
	PullNumber int
	HeadSHA    string
	Trigger    Trigger
	StartedAt  time.Time
	Deadline   time.Time
	State      State

	ctx    context.Context
	cancel context.CancelFunc
}

// NewJob derives a Job from an admitted envelope with a wall-clock deadline.
func NewJob(id string, env Envelope, deadline time.Duration) *Job {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	now := time.Now()
	return &Job{
		ID:         id,
		Repo:       env.Repo,
		PullNumber: env.PullNumber,
		HeadSHA:    env.HeadSHA,
		Trigger:    env.Trigger(),
		StartedAt:  now,
		Deadline:   now.Add(deadline),
		State:      StateAdmitting,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Context returns the job's cancellation context, nested inside by every
// outbound call the Orchestrator makes on its behalf.
func (j *Job) Context() context.Context { return j.ctx }

// Cancel releases the job's deadline timer; safe to call multiple times.
func (j *Job) Cancel() { j.cancel() }

// Key is the per-(repo, pull) identity used by the Orchestrator's key lock.
// The head SHA refines identity for logging and commit-status targeting, but
// is not always known at admission time (a mention-comment trigger learns it
// only once the PR is fetched), so the lock itself is scoped to the PR.
func (j *Job) Key() string {
	return j.Repo.FullName + "#" + strconv.Itoa(j.PullNumber)
}
