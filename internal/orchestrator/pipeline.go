package orchestrator

import (
	"context"

	"github.com/gasopt/optimizer/internal/model"
)

// Pipeline drives an AnalysisJob through its three phases, checking for
// cancellation at every suspension point as spec.md §5 requires (worker
// calls, AI provider calls). It implements JobRegistry's PipelineRunner.
type Pipeline struct {
	registry   *JobRegistry
	parser     SolidityParser
	worker     *WorkerClient
	optimizer  *AIOptimizer
	acceptance *AcceptanceValidator
}

func NewPipeline(registry *JobRegistry, parser SolidityParser, worker *WorkerClient, optimizer *AIOptimizer, acceptance *AcceptanceValidator) *Pipeline {
	return &Pipeline{
		registry:   registry,
		parser:     parser,
		worker:     worker,
		optimizer:  optimizer,
		acceptance: acceptance,
	}
}

func (p *Pipeline) Run(ctx context.Context, job *model.AnalysisJob) {
	p.registry.emit(job, model.StatusStaticAnalysis, "Parsing Solidity source.")
	if p.checkCancelled(ctx, job) {
		return
	}

	staticProfile, err := p.parser.Parse(job.Source)
	if err != nil {
		p.registry.fail(ctx, job, "Failed to parse Solidity code.")
		return
	}

	p.registry.emit(job, model.StatusDynamicAnalysis, "Measuring baseline gas profile.")
	if p.checkCancelled(ctx, job) {
		return
	}

	baseline, err := p.worker.GetGasProfile(ctx, job.Source)
	if err != nil {
		// A cancellation aborting the in-flight poll surfaces here as
		// ctx.Err(); checked before treating it as a hard failure so a
		// user cancellation is always finalized as cancelled, never
		// failed, same as the checks after the AI-optimization and
		// acceptance phases below.
		if p.checkCancelled(ctx, job) {
			return
		}
		p.registry.fail(ctx, job, err.Error())
		return
	}
	if p.checkCancelled(ctx, job) {
		return
	}

	p.registry.emit(job, model.StatusAIOptimization, "Running AI optimization loop.")
	if p.checkCancelled(ctx, job) {
		return
	}

	baselineABI, _ := model.ParseABI(baseline.ABI)
	emit := func(message string) { p.registry.emit(job, model.StatusAIOptimization, message) }

	aiResult := p.optimizer.Optimize(ctx, job.Source, baseline, emit)
	if p.checkCancelled(ctx, job) {
		return
	}

	verdict, optimizedProfile, attempts := p.acceptance.Validate(ctx, aiResult.OptimizedSource, baseline, baselineABI, emit)
	if p.checkCancelled(ctx, job) {
		return
	}

	result := &model.AnalysisResult{
		OriginalContract: job.Source,
		StaticProfile:    staticProfile,
		BaselineProfile:  baseline,
		OptimizedProfile: optimizedProfile,
		AI:               aiResult,
		Acceptance:       verdict,
		Attempts:         attempts,
	}
	p.registry.complete(job, result)
}

// checkCancelled observes cancelRequested and, if set, finalizes job as
// cancelled and reports true so the caller can stop driving the pipeline.
func (p *Pipeline) checkCancelled(ctx context.Context, job *model.AnalysisJob) bool {
	job.Lock()
	cancelled := job.CancelRequested
	job.Unlock()

	if cancelled {
		p.registry.cancel(ctx, job, "Analysis cancelled by user.")
		return true
	}
	return false
}
