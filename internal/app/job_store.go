package app

import (
	"sync"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

// JobStore is the in-memory registry of download jobs.
// Every method holds the lock for the whole read-modify-write and hands out
// copies, so readers never see a record halfway through an update.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	order []string
}

// NewJobStore creates an empty job store
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.Job)}
}

// Create adds a new job
func (s *JobStore) Create(job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrDuplicateJob
	}
	stored := *job
	s.jobs[job.ID] = &stored
	s.order = append(s.order, job.ID)
	return nil
}

// Get returns a snapshot of the job
func (s *JobStore) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// Mutate applies fn to the stored job under the write lock. If fn returns an
// error the record is left untouched. Mutating an absent job returns
// domain.ErrJobNotFound.
func (s *JobStore) Mutate(id string, fn func(job *domain.Job) error) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	draft := *job
	if err := fn(&draft); err != nil {
		return *job, err
	}
	*job = draft
	return draft, nil
}

// Delete removes a job and returns what was stored
func (s *JobStore) Delete(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	delete(s.jobs, id)
	for i, jobID := range s.order {
		if jobID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *job, true
}

// List returns snapshots of all jobs in insertion order
func (s *JobStore) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, *s.jobs[id])
	}
	return jobs
}

// Len returns the number of live jobs
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// CountByStatus returns how many live jobs are in each status
func (s *JobStore) CountByStatus() map[domain.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}
