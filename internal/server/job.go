package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState represents the current state of a compute job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// FrameSpec is the caller-facing description of the frame a job computes:
// a copy of engine.FrameRequest's fields, kept separate to avoid importing
// engine's error types into wire responses.
type FrameSpec struct {
	XMin    string `json:"xMin"`
	XMax    string `json:"xMax"`
	YMin    string `json:"yMin"`
	YMax    string `json:"yMax"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	MaxIter int    `json:"maxIter"`
}

// Job represents one in-flight or completed frame computation.
type Job struct {
	ID        string     `json:"id"`
	State     JobState   `json:"state"`
	Spec      FrameSpec  `json:"spec"`
	Mode      string     `json:"mode,omitempty"`
	RowsDone  int        `json:"rowsDone"`
	TotalRows int        `json:"totalRows"`
	Hash      string     `json:"hash,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`

	// values holds the computed grid once the job completes. Not
	// serialized directly; served separately as a PNG via the image route.
	values []float64
}

// JobManager tracks every frame job's lifecycle. Unlike a generic task
// queue, a frame job has exactly one producer of progress (the row-
// completion callback in runJob) and a handful of fixed terminal
// transitions, so the manager exposes one method per transition instead of
// an arbitrary "apply this closure" mutator: MarkRunning, AdvanceRows,
// Finish, Fail, and Cancel are the only ways a job's state can change after
// creation.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new pending job for the given frame spec.
func (jm *JobManager) CreateJob(spec FrameSpec) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Spec:      spec,
		TotalRows: spec.Height,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// GetJob retrieves a job by ID.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	return job, exists
}

// ListJobs returns all jobs.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// MarkRunning transitions a job to running and records the precision mode
// the dispatcher chose for it.
func (jm *JobManager) MarkRunning(id, mode string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if job, ok := jm.jobs[id]; ok {
		job.State = StateRunning
		job.Mode = mode
	}
}

// AdvanceRows records that rowsDone rows of the frame have been computed so
// far. The caller numbers completed rows through an atomic counter, but
// calls from concurrent workers can arrive out of order, so a count lower
// than the one already recorded is ignored and RowsDone never decreases.
func (jm *JobManager) AdvanceRows(id string, rowsDone int) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if job, ok := jm.jobs[id]; ok && rowsDone > job.RowsDone {
		job.RowsDone = rowsDone
	}
}

// Finish marks a job completed, attaching its result grid, content hash,
// and the precision mode that produced it.
func (jm *JobManager) Finish(id, mode, hash string, values []float64) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return
	}
	end := time.Now()
	job.State = StateCompleted
	job.Mode = mode
	job.Hash = hash
	job.values = values
	job.RowsDone = job.TotalRows
	job.EndTime = &end
}

// Fail marks a job failed with the triggering error's message.
func (jm *JobManager) Fail(id string, err error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return
	}
	end := time.Now()
	job.State = StateFailed
	job.Error = err.Error()
	job.EndTime = &end
}

// Cancel marks a job cancelled.
func (jm *JobManager) Cancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return
	}
	end := time.Now()
	job.State = StateCancelled
	job.EndTime = &end
}

// ProgressEvent builds a broadcastable snapshot of a job's current
// row-progress state, or reports that the job no longer exists.
func (jm *JobManager) ProgressEvent(id string) (ProgressEvent, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return ProgressEvent{}, false
	}
	return ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		RowsDone:  job.RowsDone,
		TotalRows: job.TotalRows,
		Timestamp: time.Now(),
	}, true
}
