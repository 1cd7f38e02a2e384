package worker

import (
	"context"
	"testing"
	"time"

	"github.com/gasopt/optimizer/internal/model"
	"github.com/gasopt/optimizer/internal/testutil"
)

// newTestStore wires a JobStore against an in-memory database and a runner
// pointed at a nonexistent estimator binary, so every job it processes
// fails fast without needing a real Solidity toolchain.
func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	persistence := NewPersistence(db)
	runner := NewSubprocessRunner(t.TempDir(), "/nonexistent/gas-estimator-binary")
	return NewJobStore(persistence, runner)
}

func waitForTerminal(t *testing.T, store *JobStore, id string) model.WorkerJobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if view.Status.IsTerminal() {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status in time", id)
	return model.WorkerJobView{}
}

// TestJobStoreProcessFailsAndPersists covers property 6: after the
// subprocess fails, a reload from the persisted store agrees with the
// in-memory view's status, attempts, and error.
func TestJobStoreProcessFailsAndPersists(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	job, err := store.Create("contract Foo {}")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	view := waitForTerminal(t, store, job.ID)
	if view.Status != model.WorkerFailed {
		t.Fatalf("status = %q, want failed", view.Status)
	}
	if view.Error == "" {
		t.Fatal("expected a non-empty error message on failure")
	}

	persisted, err := store.persistence.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("LoadAll returned %d jobs, want 1", len(persisted))
	}
	if persisted[0].Status != view.Status || persisted[0].Error != view.Error || persisted[0].Attempts != view.Attempts {
		t.Fatalf("persisted record %+v disagrees with in-memory view %+v", persisted[0], view)
	}
}

func TestJobStoreGetUnknownReturnsErrJobNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("does-not-exist"); err != ErrJobNotFound {
		t.Fatalf("Get error = %v, want ErrJobNotFound", err)
	}
}

// TestJobStoreCancelQueuedJobIsImmediate covers the "still queued" half of
// spec.md §4.7's cancel semantics: with no consumer draining the queue, a
// cancel request on a queued job marks it cancelled synchronously.
func TestJobStoreCancelQueuedJobIsImmediate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	store := NewJobStore(NewPersistence(db), NewSubprocessRunner(t.TempDir(), "/nonexistent/gas-estimator-binary"))

	job, err := store.Create("contract Foo {}")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	view, err := store.Cancel(job.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if view.Status != model.WorkerCancelled {
		t.Fatalf("status = %q, want cancelled", view.Status)
	}
	if !view.CancelRequested {
		t.Fatal("expected CancelRequested to be set")
	}
}

func TestJobStoreCancelUnknownReturnsErrJobNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Cancel("does-not-exist"); err != ErrJobNotFound {
		t.Fatalf("Cancel error = %v, want ErrJobNotFound", err)
	}
}

func TestJobStoreRetryRejectsNonTerminalJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	store := NewJobStore(NewPersistence(db), NewSubprocessRunner(t.TempDir(), "/nonexistent/gas-estimator-binary"))

	job, err := store.Create("contract Foo {}")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := store.Retry(job.ID); err != ErrNotRetryable {
		t.Fatalf("Retry error = %v, want ErrNotRetryable", err)
	}
}

// TestJobStoreRetryCreatesNewRecordFromFailed covers spec.md §4.7's retry
// rule: a failed job's retry is a brand new record referencing the prior
// one, never a mutation of it.
func TestJobStoreRetryCreatesNewRecordFromFailed(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	job, err := store.Create("contract Foo {}")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	waitForTerminal(t, store, job.ID)

	retried, err := store.Retry(job.ID)
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if retried.ID == job.ID {
		t.Fatal("expected Retry to allocate a new job id")
	}
	if retried.RetryOf == nil || *retried.RetryOf != job.ID {
		t.Fatalf("RetryOf = %v, want a pointer to %q", retried.RetryOf, job.ID)
	}
	if retried.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", retried.Attempts)
	}

	original, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get on original job returned error: %v", err)
	}
	if original.Status != model.WorkerFailed {
		t.Fatalf("original job status = %q, want it to remain failed after retry", original.Status)
	}
}

// TestJobStoreRecoverMarksProcessingAsFailed covers S6: a job left
// "processing" from an unclean shutdown is reported failed on the next
// Recover, never resumed.
func TestJobStoreRecoverMarksProcessingAsFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	persistence := NewPersistence(db)
	stuck := &model.WorkerJob{
		ID:         "stuck-job",
		SourceCode: "contract Foo {}",
		Status:     model.WorkerProcessing,
		Attempts:   1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := persistence.Upsert(stuck); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	store := NewJobStore(persistence, NewSubprocessRunner(t.TempDir(), "/nonexistent/gas-estimator-binary"))
	if err := store.Recover(); err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}

	view, err := store.Get("stuck-job")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if view.Status != model.WorkerFailed {
		t.Fatalf("status after recovery = %q, want failed", view.Status)
	}
	if view.Error != "Worker restarted during processing." {
		t.Fatalf("Error = %q, want the restart message", view.Error)
	}

	persisted, err := persistence.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Status != model.WorkerFailed {
		t.Fatalf("recovery update was not persisted: %+v", persisted)
	}
}
