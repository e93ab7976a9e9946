package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skymarshal/core/internal/atmodel"
)

// JobStatus is a network-fetch job's lifecycle state.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one async POST /api/network/fetch request, polled via
// GET /api/network/status/:id and collected via GET /api/network/result/:id.
type Job struct {
	ID        string
	Status    JobStatus
	Progress  string
	Err       error
	Result    *atmodel.NetworkSnapshot
	CreatedAt time.Time
}

// JobRegistry is an in-memory map of job ID -> *Job, the async-job
// counterpart to internal/session.Registry: both are thread-safe,
// in-process maps with no persistence across restarts, since an
// in-flight network fetch has no meaning after the process that's
// running it exits.
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Create registers a new queued job and returns it.
func (r *JobRegistry) Create() *Job {
	job := &Job{ID: uuid.NewString(), Status: JobQueued, CreatedAt: time.Now()}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

func (r *JobRegistry) Get(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// Update mutates the job under id via fn, a no-op if id is unknown (the
// ID may be stale from a previous process, or forged).
func (r *JobRegistry) Update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}
