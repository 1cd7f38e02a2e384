package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gasopt/optimizer/internal/model"
)

// ErrJobNotFound is returned by Get/Cancel/Retry for an unknown id.
var ErrJobNotFound = fmt.Errorf("job not found")

// ErrNotRetryable is returned by Retry when the job's status is not one of
// failed/cancelled, per spec.md §4.7.
var ErrNotRetryable = fmt.Errorf("job is not retryable")

// JobStore owns worker-job lifecycle with at-most-one in-flight subprocess
// per host (spec.md §4.7): a single consumer goroutine drains a queue of
// job ids, so "processing" is never observed concurrently for two jobs.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[string]*model.WorkerJob
	aborts map[string]chan struct{}

	persistence *Persistence
	runner      *SubprocessRunner

	queue chan string
}

func NewJobStore(persistence *Persistence, runner *SubprocessRunner) *JobStore {
	return &JobStore{
		jobs:        make(map[string]*model.WorkerJob),
		aborts:      make(map[string]chan struct{}),
		persistence: persistence,
		runner:      runner,
		queue:       make(chan string, 256),
	}
}

// Recover loads all persisted jobs into memory and applies spec.md §4.7's
// startup-recovery rule: any record left "processing" from an unclean
// shutdown is reported failed, never resumed.
func (s *JobStore) Recover() error {
	jobs, err := s.persistence.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if job.Status == model.WorkerProcessing {
			job.Status = model.WorkerFailed
			job.Error = "Worker restarted during processing."
			job.UpdatedAt = time.Now()
			if err := s.persistence.Upsert(job); err != nil {
				log.Printf("worker: failed to persist recovery update for job %s: %v", job.ID, err)
			}
		}
		s.jobs[job.ID] = job
	}
	return nil
}

// Start launches the single serialized consumer goroutine.
func (s *JobStore) Start(ctx context.Context) {
	go s.consume(ctx)
}

func (s *JobStore) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.process(ctx, id)
		}
	}
}

// Create inserts a new queued record and schedules processing.
func (s *JobStore) Create(source string) (*model.WorkerJob, error) {
	job := &model.WorkerJob{
		ID:         uuid.NewString(),
		SourceCode: source,
		Status:     model.WorkerQueued,
		Attempts:   1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.insert(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) insert(job *model.WorkerJob) error {
	if err := s.persistence.Upsert(job); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.queue <- job.ID
	return nil
}

// Get returns the public view of a job.
func (s *JobStore) Get(id string) (model.WorkerJobView, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return model.WorkerJobView{}, ErrJobNotFound
	}
	return job.View(), nil
}

// Cancel sets cancelRequested; if the job is still queued it is marked
// cancelled immediately; if processing, its abort signal fires, per
// spec.md §4.7.
func (s *JobStore) Cancel(id string) (model.WorkerJobView, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return model.WorkerJobView{}, ErrJobNotFound
	}

	if job.Status.IsTerminal() {
		view := job.View()
		s.mu.Unlock()
		return view, nil
	}

	job.CancelRequested = true
	job.UpdatedAt = time.Now()

	if job.Status == model.WorkerQueued {
		job.Status = model.WorkerCancelled
	}

	if abort, processing := s.aborts[id]; processing {
		select {
		case <-abort:
		default:
			close(abort)
		}
	}

	view := job.View()
	s.mu.Unlock()

	if err := s.persistence.Upsert(job); err != nil {
		return view, err
	}
	return view, nil
}

// Retry creates a new job from a terminal failed/cancelled job, never
// mutating the prior record, per spec.md §4.7.
func (s *JobStore) Retry(id string) (*model.WorkerJob, error) {
	s.mu.Lock()
	prior, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	if prior.Status != model.WorkerFailed && prior.Status != model.WorkerCancelled {
		return nil, ErrNotRetryable
	}

	priorID := prior.ID
	job := &model.WorkerJob{
		ID:         uuid.NewString(),
		SourceCode: prior.SourceCode,
		Status:     model.WorkerQueued,
		Attempts:   prior.Attempts + 1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryOf:    &priorID,
	}
	if err := s.insert(job); err != nil {
		return nil, err
	}
	return job, nil
}

// process runs exactly one job's subprocess to completion, persisting
// every transition before returning, per spec.md §4.7.
func (s *JobStore) process(ctx context.Context, id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if job.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}

	abort := make(chan struct{})
	s.aborts[id] = abort
	job.Status = model.WorkerProcessing
	job.UpdatedAt = time.Now()
	source := job.SourceCode
	s.mu.Unlock()

	if err := s.persistence.Upsert(job); err != nil {
		log.Printf("worker: failed to persist processing transition for job %s: %v", id, err)
	}

	profile, runErr := s.runner.Run(ctx, id, source, abort)

	s.mu.Lock()
	delete(s.aborts, id)
	cancelled := job.CancelRequested
	job.UpdatedAt = time.Now()

	switch {
	case cancelled:
		job.Status = model.WorkerCancelled
	case runErr != nil:
		job.Status = model.WorkerFailed
		job.Error = runErr.Error()
	default:
		job.Status = model.WorkerCompleted
		job.Result = model.WorkerResultFromGasProfile(profile)
	}
	s.mu.Unlock()

	if err := s.persistence.Upsert(job); err != nil {
		log.Printf("worker: failed to persist terminal transition for job %s: %v", id, err)
	}
}
