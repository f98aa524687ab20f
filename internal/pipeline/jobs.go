package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/xmlgest/internal/ingest"
)

// JobStatus represents the state of an import job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusResolving JobStatus = "resolving"
	StatusImporting JobStatus = "importing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks the state of a single import run. One job covers one
// locator, which may expand to many archive entries.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	Locator   string `json:"locator"`
	EntryGlob string `json:"entries,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	opts   ingest.GraphOptions
	errors []string
}

// Progress tracks per-entry import progress.
type Progress struct {
	EntriesTotal  int      `json:"entries_total"`
	EntriesDone   int      `json:"entries_done"`
	Nodes         int64    `json:"nodes_created"`
	Relationships int64    `json:"relationships_created"`
	Errors        []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrEntriesDone atomically increments the imported entry count.
func (j *Job) IncrEntriesDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.EntriesDone++
	j.UpdatedAt = time.Now()
}

// AddGraphCounts records nodes and relationships created by one entry.
func (j *Job) AddGraphCounts(nodes, rels int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Nodes += nodes
	j.Progress.Relationships += rels
	j.UpdatedAt = time.Now()
}

// SetEntriesTotal records how many entries the job will import.
func (j *Job) SetEntriesTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.EntriesTotal = n
	j.UpdatedAt = time.Now()
}

// SetOptions sets the graph options the job imports with.
func (j *Job) SetOptions(opts ingest.GraphOptions) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.opts = opts
}

// Options returns the graph options the job imports with.
func (j *Job) Options() ingest.GraphOptions {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.opts
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Locator   string    `json:"locator"`
	EntryGlob string    `json:"entries,omitempty"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:        j.ID,
		Locator:   j.Locator,
		EntryGlob: j.EntryGlob,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress: Progress{
			EntriesTotal:  j.Progress.EntriesTotal,
			EntriesDone:   j.Progress.EntriesDone,
			Nodes:         j.Progress.Nodes,
			Relationships: j.Progress.Relationships,
			Errors:        errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
