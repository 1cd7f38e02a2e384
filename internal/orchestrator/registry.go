package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gasopt/optimizer/internal/model"
)

// PipelineRunner drives an AnalysisJob's three phases to a terminal state.
// JobRegistry only needs to spawn it; the implementation lives in
// pipeline.go. Split out as an interface so tests can substitute a stub
// pipeline without pulling in the worker client / AI optimizer.
type PipelineRunner interface {
	Run(ctx context.Context, job *model.AnalysisJob)
}

// JobRegistry owns every AnalysisJob in the process, the dedup index, and
// the progress fanout (spec.md §4.1). It never persists state — analysis
// jobs live only as long as the process does, by design (spec.md §1
// Non-goals).
type JobRegistry struct {
	mu       sync.Mutex
	jobs     map[string]*model.AnalysisJob
	cancels  map[string]context.CancelFunc
	bus      *ProgressBus
	dedupe   *DedupeCache
	pipeline PipelineRunner
}

func NewJobRegistry(bus *ProgressBus, dedupe *DedupeCache) *JobRegistry {
	return &JobRegistry{
		jobs:    make(map[string]*model.AnalysisJob),
		cancels: make(map[string]context.CancelFunc),
		bus:     bus,
		dedupe:  dedupe,
	}
}

// SetPipeline wires the pipeline runner after construction, avoiding a
// constructor cycle (Pipeline needs the registry to emit progress, the
// registry needs the pipeline to spawn jobs).
func (r *JobRegistry) SetPipeline(p PipelineRunner) { r.pipeline = p }

// CreateOrReuseJob implements spec.md §4.1's dedup rule: reuse only when a
// fingerprint mapping exists and the mapped job is non-terminal or
// completed within TTL (TTL expiry itself lives in DedupeCache).
func (r *JobRegistry) CreateOrReuseJob(ctx context.Context, source string) (model.JobView, bool) {
	fingerprint := model.Fingerprint(source)

	if existingID, ok := r.dedupe.Get(ctx, fingerprint); ok {
		r.mu.Lock()
		job, exists := r.jobs[existingID]
		r.mu.Unlock()
		if exists {
			view := job.View()
			if !view.Status.IsTerminal() || view.Status == model.StatusCompleted {
				return view, true
			}
		}
	}

	job := &model.AnalysisJob{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    model.StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// runCtx, not ctx, drives the spawned pipeline: ctx belongs to this HTTP
	// request and is cancelled the moment the response is written, while
	// the job keeps running in the background until CancelJob cancels
	// runCtx directly. This is the one cancellation signal that actually
	// reaches every suspension point downstream — worker polling, AI
	// provider HTTP calls — without the pipeline having to re-derive it.
	runCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	r.dedupe.Set(ctx, fingerprint, job.ID)
	r.emit(job, model.StatusQueued, "Job queued.")

	if r.pipeline != nil {
		go r.pipeline.Run(runCtx, job)
	} else {
		cancel()
	}

	return job.View(), false
}

// GetJob returns the public view of a job, source text never leaked.
func (r *JobRegistry) GetJob(id string) (model.JobView, bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return model.JobView{}, false
	}
	return job.View(), true
}

// CancelJob sets cancelRequested and emits a progress event; calling it on
// a terminal job is a no-op that returns the existing view unchanged
// (spec.md §4.1, §5).
func (r *JobRegistry) CancelJob(id string) (model.JobView, bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return model.JobView{}, false
	}

	job.Lock()
	if job.Status.IsTerminal() {
		view := job.ViewLocked()
		job.Unlock()
		return view, true
	}
	job.CancelRequested = true
	job.UpdatedAt = time.Now()
	event := model.ProgressEvent{Phase: job.Status, Message: "Cancellation requested.", Timestamp: job.UpdatedAt}
	job.Events = append(job.Events, event)
	view := job.ViewLocked()
	r.bus.publishLocked(job.ID, event)
	job.Unlock()

	// Cancelling runCtx aborts whatever suspension point the pipeline is
	// currently blocked on — an in-flight worker poll or AI provider HTTP
	// call — rather than waiting for it to notice CancelRequested on its
	// own at the next phase boundary.
	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}
	r.mu.Unlock()

	return view, true
}

// Subscribe delivers backlog then live events for id, returning a detach
// function (spec.md §4.1, §4.5).
func (r *JobRegistry) Subscribe(id string) (<-chan model.ProgressEvent, func(), bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	job.Lock()
	backlog := append([]model.ProgressEvent{}, job.Events...)
	sub := r.bus.subscribeLocked(id, backlog)
	job.Unlock()

	detach := func() { r.bus.unsubscribe(id, sub) }
	return sub.ch, detach, true
}

// emit appends a progress event to job and publishes it, while holding the
// job's lock for the whole operation so Subscribe can never observe a
// partial update (spec.md §4.1 emit ordering).
func (r *JobRegistry) emit(job *model.AnalysisJob, phase model.JobStatus, message string) {
	job.Lock()
	job.Status = phase
	job.UpdatedAt = time.Now()
	event := model.ProgressEvent{Phase: phase, Message: message, Timestamp: job.UpdatedAt}
	job.Events = append(job.Events, event)
	r.bus.publishLocked(job.ID, event)
	job.Unlock()
}

// complete finalizes job with a successful AnalysisResult.
func (r *JobRegistry) complete(job *model.AnalysisJob, result *model.AnalysisResult) {
	job.Lock()
	job.Status = model.StatusCompleted
	job.Result = result
	job.UpdatedAt = time.Now()
	event := model.ProgressEvent{Phase: model.StatusCompleted, Message: "Analysis completed.", Timestamp: job.UpdatedAt}
	job.Events = append(job.Events, event)
	r.bus.publishLocked(job.ID, event)
	job.Unlock()

	r.clearCancel(job.ID)
}

// fail finalizes job as failed, invalidating its dedupe mapping so a
// future identical submission is not reused (spec.md §3).
func (r *JobRegistry) fail(ctx context.Context, job *model.AnalysisJob, reason string) {
	job.Lock()
	job.Status = model.StatusFailed
	job.Err = reason
	job.UpdatedAt = time.Now()
	event := model.ProgressEvent{Phase: model.StatusFailed, Message: reason, Timestamp: job.UpdatedAt}
	job.Events = append(job.Events, event)
	r.bus.publishLocked(job.ID, event)
	job.Unlock()

	r.dedupe.Invalidate(ctx, model.Fingerprint(job.Source))
	r.clearCancel(job.ID)
}

// cancel finalizes job as cancelled, invalidating its dedupe mapping.
func (r *JobRegistry) cancel(ctx context.Context, job *model.AnalysisJob, reason string) {
	job.Lock()
	job.Status = model.StatusCancelled
	job.Err = reason
	job.UpdatedAt = time.Now()
	event := model.ProgressEvent{Phase: model.StatusCancelled, Message: reason, Timestamp: job.UpdatedAt}
	job.Events = append(job.Events, event)
	r.bus.publishLocked(job.ID, event)
	job.Unlock()

	r.dedupe.Invalidate(ctx, model.Fingerprint(job.Source))
	r.clearCancel(job.ID)
}

// clearCancel releases and forgets id's run-context cancel func once the
// job has reached a terminal state, so JobRegistry never accumulates one
// cancel func per job for the lifetime of the process.
func (r *JobRegistry) clearCancel(id string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}
