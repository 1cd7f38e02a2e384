package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gasopt/optimizer/internal/model"
)

// neverTerminalWorkerServer answers /jobs/analyze with an accepted job id and
// every subsequent status poll with "queued", so a caller polling it never
// observes a terminal result — only a cancellation can end the wait.
func neverTerminalWorkerServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mux http.ServeMux
	mux.HandleFunc("/jobs/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"jobId":"job-1","status":"queued"}`))
	})
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobId":"job-1","status":"queued"}`))
	})
	return httptest.NewServer(&mux)
}

// TestPipelineCancelDuringWorkerCallFinalizesAsCancelled is a regression
// test for the dynamic_analysis phase: a cancellation landing while
// WorkerClient.GetGasProfile is polling must finalize the job as cancelled,
// never as failed with a bare "context canceled" message.
func TestPipelineCancelDuringWorkerCallFinalizesAsCancelled(t *testing.T) {
	server := neverTerminalWorkerServer(t)
	defer server.Close()

	bus := NewProgressBus()
	dedupe := NewDedupeCache(nil, time.Minute)
	registry := NewJobRegistry(bus, dedupe)

	worker := NewWorkerClient(server.URL, 5*time.Millisecond, time.Minute)
	pipeline := NewPipeline(registry, NewRegexParser(), worker, nil, nil)
	registry.SetPipeline(pipeline)

	view, _ := registry.CreateOrReuseJob(context.Background(), "contract Foo { function a() public {} }")

	// Give the pipeline a moment to reach the worker poll, then cancel.
	time.Sleep(20 * time.Millisecond)
	registry.CancelJob(view.ID)

	deadline := time.Now().Add(2 * time.Second)
	var final model.JobView
	for time.Now().Before(deadline) {
		final, _ = registry.GetJob(view.ID)
		if final.Status.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if final.Status != model.StatusCancelled {
		t.Fatalf("final status = %q, want %q (error: %q)", final.Status, model.StatusCancelled, final.Error)
	}
}
