package orchestrator

import (
	"context"
	"fmt"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/model"
)

// AcceptanceValidator recompiles a candidate, measures it, and decides
// acceptance against the baseline per spec.md §4.4.
type AcceptanceValidator struct {
	worker                  *WorkerClient
	optimizer               *AIOptimizer
	maxAttempts             int
	maxFnRegressionPct      float64
	maxDeployRegressionPct  float64
}

func NewAcceptanceValidator(worker *WorkerClient, optimizer *AIOptimizer, cfg config.AcceptanceConfig) *AcceptanceValidator {
	return &AcceptanceValidator{
		worker:                 worker,
		optimizer:              optimizer,
		maxAttempts:            cfg.MaxAttempts,
		maxFnRegressionPct:     cfg.MaxAllowedRegressionPct,
		maxDeployRegressionPct: cfg.MaxDeploymentRegressionPct,
	}
}

func regressionPct(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return (after - before) / before * 100
}

// Validate runs the acceptance attempts loop described in spec.md §4.4:
// up to maxAttempts recompiles, with at most one AI corrective retry
// across the whole loop when an attempt raises during compile/deploy/
// measure.
func (v *AcceptanceValidator) Validate(
	ctx context.Context,
	candidateSource string,
	baseline *model.GasProfile,
	baselineABI []model.ABIFunction,
	emit ProgressEmitter,
) (model.AcceptanceVerdict, *model.GasProfile, int) {
	maxAttempts := v.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	correctiveUsed := false
	attempts := 0

	for attempts < maxAttempts {
		attempts++

		profile, err := v.worker.GetGasProfile(ctx, candidateSource)
		if err != nil {
			if !correctiveUsed && v.optimizer != nil {
				correctiveUsed = true
				corrected, correctErr := v.optimizer.CorrectCompileError(ctx, candidateSource, err)
				if correctErr == nil && corrected != candidateSource {
					candidateSource = corrected
					continue
				}
			}
			continue
		}

		candidateABI, _ := model.ParseABI(profile.ABI)
		abiCompatible := model.ABICompatible(baselineABI, candidateABI)

		deployRegressionPct := regressionPct(float64(baseline.DeploymentGas), float64(profile.DeploymentGas))
		avgBefore := baseline.AverageMutableFunctionGas()
		avgAfter := profile.AverageMutableFunctionGas()
		fnRegressionPct := regressionPct(avgBefore, avgAfter)
		improved := profile.DeploymentGas < baseline.DeploymentGas || avgAfter < avgBefore

		checks := model.AcceptanceChecks{
			Compiled:                            true,
			ABICompatible:                       abiCompatible,
			DeploymentGasRegressionPct:          deployRegressionPct,
			AverageMutableFunctionRegressionPct: fnRegressionPct,
			Improved:                            improved,
		}

		if !abiCompatible {
			return model.AcceptanceVerdict{Accepted: false, Reason: "ABI compatibility check failed.", Checks: checks}, nil, attempts
		}
		if fnRegressionPct > v.maxFnRegressionPct {
			return model.AcceptanceVerdict{Accepted: false, Reason: "Average mutable-function gas regression exceeds threshold.", Checks: checks}, nil, attempts
		}
		if deployRegressionPct > v.maxDeployRegressionPct {
			return model.AcceptanceVerdict{Accepted: false, Reason: "Deployment gas regression exceeds threshold.", Checks: checks}, nil, attempts
		}

		reason := "Candidate accepted."
		if !improved {
			reason = "Candidate accepted (neutral gas result)."
		}
		return model.AcceptanceVerdict{Accepted: true, Reason: reason, Checks: checks}, profile, attempts
	}

	return model.AcceptanceVerdict{
		Accepted: false,
		Reason:   fmt.Sprintf("No candidate passed acceptance after %d attempts.", attempts),
	}, nil, attempts
}
