// Package store persists job records and keeps them in step with the
// events a job publishes.
package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
	"pkg.jsn.cam/logmate/pkg/storage"
)

const jobsBucket = "jobs"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	ErrNoJobID     = errors.New("job id required")
)

// JobStore persists protocol.Job records in a storage.Backend.
type JobStore struct {
	jobs *storage.Collection[protocol.Job]
	now  func() time.Time
}

// NewJobStore creates a store on backend.
func NewJobStore(backend storage.Backend) (*JobStore, error) {
	jobs, err := storage.NewCollection[protocol.Job](backend, jobsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}
	return &JobStore{jobs: jobs, now: time.Now}, nil
}

// Create saves a new job. Status defaults to queued and SubmittedAt to now.
func (s *JobStore) Create(job protocol.Job) (protocol.Job, error) {
	if job.ID == "" {
		return protocol.Job{}, ErrNoJobID
	}
	if job.Status == "" {
		job.Status = protocol.JobStatusQueued
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = s.now().UTC()
	}

	err := s.jobs.Create(job.ID, job)
	if errors.Is(err, storage.ErrExists) {
		return protocol.Job{}, fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	if err != nil {
		return protocol.Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job, nil
}

// Get returns the job with id.
func (s *JobStore) Get(id string) (protocol.Job, error) {
	job, err := s.jobs.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		return protocol.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return protocol.Job{}, err
	}
	job.ComputeDurations()
	return job, nil
}

// List returns all jobs, newest first.
func (s *JobStore) List() ([]protocol.Job, error) {
	jobs, err := s.jobs.All()
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b protocol.Job) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	for i := range jobs {
		jobs[i].ComputeDurations()
	}
	return jobs, nil
}

// Update applies fn to the stored job atomically and returns the result.
func (s *JobStore) Update(id string, fn func(job *protocol.Job) error) (protocol.Job, error) {
	job, err := s.jobs.Modify(id, fn)
	if errors.Is(err, storage.ErrNotFound) {
		return protocol.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// MarkFailed records a terminal failure.
func (s *JobStore) MarkFailed(id string, cause error) (protocol.Job, error) {
	return s.Update(id, func(job *protocol.Job) error {
		job.Status = protocol.JobStatusFailed
		job.Error = cause.Error()
		job.CompletedAt = s.now().UTC()
		return nil
	})
}
