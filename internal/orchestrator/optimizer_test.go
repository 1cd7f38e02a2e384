package orchestrator

import (
	"context"
	"testing"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/model"
)

// fakeAIProvider is an AIProvider test double that returns canned responses
// in order, one per call, cycling to the last response once exhausted.
type fakeAIProvider struct {
	responses []string
	calls     int
}

func (f *fakeAIProvider) Name() string     { return "fake" }
func (f *fakeAIProvider) Models() []string { return []string{"fake-model"} }
func (f *fakeAIProvider) Complete(ctx context.Context, modelName, prompt string, jsonMode bool) (string, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

const fakeDraftResponse = `{"optimizations":[{"name":"cache length"}],"edits":[],"totalEstimatedSaving":"~5%"}`
const fakeVerifyApproved = `{"approved":true,"summary":"looks good","riskFlags":[]}`

func TestAIOptimizerAcceptsOnFirstCycle(t *testing.T) {
	provider := &fakeAIProvider{responses: []string{
		fakeDraftResponse,
		"contract Foo { function a() external {} }",
		fakeVerifyApproved,
	}}
	optimizer := NewAIOptimizer([]AIProvider{provider}, config.AIConfig{MaxOptimizerCycles: 2})

	result := optimizer.Optimize(context.Background(), "contract Foo {}", &model.GasProfile{}, func(string) {})

	if result.OptimizedSource == "" || result.OptimizedSource == "contract Foo {}" {
		t.Fatalf("expected an optimized source distinct from the original, got %q", result.OptimizedSource)
	}
	if result.Meta.VerifierVerdict != "looks good" {
		t.Fatalf("VerifierVerdict = %q, want %q", result.Meta.VerifierVerdict, "looks good")
	}
}

// TestAIOptimizerStopsPromptlyOnCancellation covers the cycle loop's
// cancellation check: with ctx already cancelled before Optimize is called,
// it must return the fallback result without making any provider calls.
func TestAIOptimizerStopsPromptlyOnCancellation(t *testing.T) {
	provider := &fakeAIProvider{responses: []string{fakeDraftResponse}}
	optimizer := NewAIOptimizer([]AIProvider{provider}, config.AIConfig{MaxOptimizerCycles: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := optimizer.Optimize(ctx, "contract Foo {}", &model.GasProfile{}, func(string) {})

	if provider.calls != 0 {
		t.Fatalf("provider.calls = %d, want 0: a cancelled context must be observed before the first stage call", provider.calls)
	}
	if result.OptimizedSource != "contract Foo {}" {
		t.Fatalf("OptimizedSource = %q, want the unmodified original on cancellation", result.OptimizedSource)
	}
}

// TestAIOptimizerStopsBetweenStagesOnCancellation covers cancellation that
// lands mid-cycle: the generate stage must not run once ctx is cancelled
// between the draft and generate stages.
func TestAIOptimizerStopsBetweenStagesOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	provider := &cancellingAIProvider{cancel: cancel, responses: []string{fakeDraftResponse}}
	optimizer := NewAIOptimizer([]AIProvider{provider}, config.AIConfig{MaxOptimizerCycles: 5})

	result := optimizer.Optimize(ctx, "contract Foo {}", &model.GasProfile{}, func(string) {})

	if provider.calls != 1 {
		t.Fatalf("provider.calls = %d, want 1: generate stage must not run after cancellation", provider.calls)
	}
	if result.OptimizedSource != "contract Foo {}" {
		t.Fatalf("OptimizedSource = %q, want the unmodified original on cancellation", result.OptimizedSource)
	}
}

// cancellingAIProvider cancels the context passed to its first Complete
// call, simulating a cancellation arriving between two stages of one cycle.
type cancellingAIProvider struct {
	cancel    context.CancelFunc
	responses []string
	calls     int
}

func (f *cancellingAIProvider) Name() string     { return "fake" }
func (f *cancellingAIProvider) Models() []string { return []string{"fake-model"} }
func (f *cancellingAIProvider) Complete(ctx context.Context, modelName, prompt string, jsonMode bool) (string, error) {
	f.calls++
	f.cancel()
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}
