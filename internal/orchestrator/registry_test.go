package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/gasopt/optimizer/internal/model"
)

// stubPipeline lets tests control exactly when/whether a job's Run
// completes, without pulling in the worker client or AI optimizer.
type stubPipeline struct {
	started chan *model.AnalysisJob
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{started: make(chan *model.AnalysisJob, 16)}
}

func (s *stubPipeline) Run(ctx context.Context, job *model.AnalysisJob) {
	s.started <- job
}

func newTestRegistry() (*JobRegistry, *stubPipeline) {
	bus := NewProgressBus()
	dedupe := NewDedupeCache(nil, time.Minute)
	registry := NewJobRegistry(bus, dedupe)
	pipeline := newStubPipeline()
	registry.SetPipeline(pipeline)
	return registry, pipeline
}

func TestCreateOrReuseJobDedupesWithinTTL(t *testing.T) {
	registry, pipeline := newTestRegistry()
	ctx := context.Background()

	first, reused := registry.CreateOrReuseJob(ctx, "contract A {}")
	if reused {
		t.Fatal("expected the first submission to be new")
	}
	<-pipeline.started

	second, reused := registry.CreateOrReuseJob(ctx, "contract A {}")
	if !reused {
		t.Fatal("expected the second identical submission to be reused")
	}
	if second.ID != first.ID {
		t.Fatalf("reused job id %q does not match original %q", second.ID, first.ID)
	}
}

// TestCreateOrReuseJobAfterFailureGetsNewID covers property 4: once a job
// fails, its dedupe mapping is invalidated so the next identical submission
// gets a fresh id.
func TestCreateOrReuseJobAfterFailureGetsNewID(t *testing.T) {
	registry, pipeline := newTestRegistry()
	ctx := context.Background()

	first, _ := registry.CreateOrReuseJob(ctx, "contract A {}")
	job := <-pipeline.started
	registry.fail(ctx, job, "boom")

	second, reused := registry.CreateOrReuseJob(ctx, "contract A {}")
	if reused {
		t.Fatal("expected a new job after the prior one failed")
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh job id after failure")
	}
}

func TestCancelJobIsIdempotentOnTerminal(t *testing.T) {
	registry, pipeline := newTestRegistry()
	ctx := context.Background()

	view, _ := registry.CreateOrReuseJob(ctx, "contract A {}")
	job := <-pipeline.started
	registry.complete(job, &model.AnalysisResult{})

	cancelled, ok := registry.CancelJob(view.ID)
	if !ok {
		t.Fatal("expected CancelJob to find the job")
	}
	if cancelled.Status != model.StatusCompleted {
		t.Fatalf("expected cancel on a terminal job to be a no-op, got status %q", cancelled.Status)
	}
}

func TestCancelJobSetsCancelRequested(t *testing.T) {
	registry, pipeline := newTestRegistry()
	ctx := context.Background()

	registry.CreateOrReuseJob(ctx, "contract A {}")
	job := <-pipeline.started

	view, ok := registry.CancelJob(job.ID)
	if !ok {
		t.Fatal("expected CancelJob to find the job")
	}
	if view.Status.IsTerminal() {
		t.Fatalf("expected cancellation request to not itself be terminal, got %q", view.Status)
	}

	job.Lock()
	cancelRequested := job.CancelRequested
	job.Unlock()
	if !cancelRequested {
		t.Fatal("expected CancelRequested to be set on the job")
	}
}

// TestSubscribeBacklogThenLive covers property 3: a subscriber that joins
// after N events sees those N events, in emission order, before any
// subsequent one.
func TestSubscribeBacklogThenLive(t *testing.T) {
	registry, pipeline := newTestRegistry()
	ctx := context.Background()

	view, _ := registry.CreateOrReuseJob(ctx, "contract A {}")
	job := <-pipeline.started

	registry.emit(job, model.StatusStaticAnalysis, "parsing")
	registry.emit(job, model.StatusDynamicAnalysis, "measuring")

	events, detach, ok := registry.Subscribe(view.ID)
	if !ok {
		t.Fatal("expected Subscribe to find the job")
	}
	defer detach()

	first := <-events
	second := <-events
	if first.Phase != model.StatusQueued {
		t.Fatalf("first backlog event phase = %q, want queued", first.Phase)
	}
	if second.Phase != model.StatusStaticAnalysis {
		t.Fatalf("second backlog event phase = %q, want static_analysis", second.Phase)
	}

	registry.emit(job, model.StatusAIOptimization, "optimizing")
	third := <-events
	if third.Phase != model.StatusDynamicAnalysis {
		t.Fatalf("third event phase = %q, want dynamic_analysis", third.Phase)
	}
}
