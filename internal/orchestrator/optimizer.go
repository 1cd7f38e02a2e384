package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/model"
)

// ProgressEmitter lets the optimizer report user-facing progress without
// depending on JobRegistry directly — the pipeline supplies a closure
// bound to the job it's driving.
type ProgressEmitter func(message string)

// AIOptimizer is the algorithmic centerpiece: it drives up to
// MaxOptimizerCycles attempts at producing an accepted-shape candidate via
// the draft/repair/generate/verify sub-pipeline (spec.md §4.3).
type AIOptimizer struct {
	plan       *ProviderPlan
	maxCycles  int
}

func NewAIOptimizer(providers []AIProvider, cfg config.AIConfig) *AIOptimizer {
	return &AIOptimizer{
		plan:      NewProviderPlan(providers, cfg),
		maxCycles: cfg.MaxOptimizerCycles,
	}
}

var (
	uncheckedIncrementRe = regexp.MustCompile(`unchecked\s*\{\s*\+\+\s*([A-Za-z_][A-Za-z0-9_]*)\s*;\s*\}`)
	requireErrorRe       = regexp.MustCompile(`require\s*\(([^,()]+),\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*\)\s*\)`)
	storageOnLiteralRe   = regexp.MustCompile(`\b(uint\d*|int\d*|bool|address)\s+storage\s+\w+\s*=`)
)

// Optimize runs the cycle loop and returns either an accepted candidate or
// the fallback response described in spec.md §4.3's last paragraph.
func (o *AIOptimizer) Optimize(ctx context.Context, source string, baseline *model.GasProfile, emit ProgressEmitter) model.AIResult {
	var feedback string
	var lastProvider, lastModel string
	var retries, repairAttempts int
	var warnings []string

	cycles := o.maxCycles
	if cycles <= 0 {
		cycles = 1
	}

	for cycle := 0; cycle < cycles; cycle++ {
		// Checked before every stage's long-running call, not just at the
		// pipeline's phase boundaries, so a cancellation mid-cycle doesn't
		// have to wait for the whole multi-cycle, multi-provider loop to
		// unwind.
		if ctxCancelled(ctx) {
			break
		}

		draft, provider, modelName, cycleRetries, err := o.runDraftStage(ctx, source, baseline, feedback, emit)
		retries += cycleRetries
		if provider != "" {
			lastProvider, lastModel = provider, modelName
		}
		if err != nil {
			feedback = err.Error()
			warnings = append(warnings, fmt.Sprintf("cycle %d draft failed: %v", cycle+1, err))
			continue
		}

		schemaErrs := draft.schemaErrs
		draftResult := draft.result
		if schemaErrs != nil {
			if ctxCancelled(ctx) {
				break
			}
			emit("Calling AI to repair…")
			repairAttempts++
			repaired, repErr := o.repairDraft(ctx, source, draft.raw, schemaErrs)
			if repErr != nil {
				feedback = repErr.Error()
				warnings = append(warnings, fmt.Sprintf("cycle %d schema repair failed: %v", cycle+1, repErr))
				continue
			}
			draftResult = repaired
		}

		if ctxCancelled(ctx) {
			break
		}
		emit("Generating optimized source…")
		generated, genProvider, genModel, genRetries, err := o.runGenerateStage(ctx, source, draftResult)
		retries += genRetries
		if genProvider != "" {
			lastProvider, lastModel = genProvider, genModel
		}
		if err != nil {
			feedback = err.Error()
			warnings = append(warnings, fmt.Sprintf("cycle %d generate failed: %v", cycle+1, err))
			continue
		}

		if antiPattern := staticAntiPatternCheck(generated); antiPattern != "" {
			feedback = antiPattern
			warnings = append(warnings, fmt.Sprintf("cycle %d static check flagged: %s", cycle+1, antiPattern))
			continue
		}

		if ctxCancelled(ctx) {
			break
		}
		emit("Verifying optimization…")
		verdict, verifyProvider, verifyModel, verifyRetries, err := o.runVerifyStage(ctx, source, generated, draftResult, baseline)
		retries += verifyRetries
		if verifyProvider != "" {
			lastProvider, lastModel = verifyProvider, verifyModel
		}
		if err != nil {
			feedback = err.Error()
			warnings = append(warnings, fmt.Sprintf("cycle %d verify failed: %v", cycle+1, err))
			continue
		}
		if !verdict.Approved {
			feedback = verdict.Summary
			warnings = append(warnings, append([]string{fmt.Sprintf("cycle %d rejected: %s", cycle+1, verdict.Summary)}, verdict.RiskFlags...)...)
			continue
		}

		return model.AIResult{
			Optimizations:        draftResult.Optimizations,
			Edits:                draftResult.Edits,
			OptimizedSource:      generated,
			TotalEstimatedSaving: draftResult.TotalEstimatedSaving,
			Meta: model.AIMeta{
				Provider:             lastProvider,
				Model:                lastModel,
				Retries:              retries,
				SchemaRepairAttempts: repairAttempts,
				VerifierVerdict:      verdict.Summary,
				Warnings:             warnings,
			},
		}
	}

	return model.AIResult{
		OptimizedSource:      source,
		TotalEstimatedSaving: fmt.Sprintf("Unavailable (AI failed: %s)", feedback),
		Meta: model.AIMeta{
			Provider:             lastProvider,
			Model:                lastModel,
			Retries:              retries,
			SchemaRepairAttempts: repairAttempts,
			Warnings:             warnings,
		},
	}
}

type draftAttempt struct {
	raw        string
	result     DraftResult
	schemaErrs []string
}

func (o *AIOptimizer) runDraftStage(ctx context.Context, source string, baseline *model.GasProfile, feedback string, emit ProgressEmitter) (draftAttempt, string, string, int, error) {
	emit("Calling AI model…")
	prompt := buildDraftPrompt(source, baseline, feedback)

	res, err := o.plan.Call(ctx, prompt, true)
	if err != nil {
		return draftAttempt{}, "", "", 0, err
	}

	emit("Validating JSON…")
	parsed, schemaErrs := parseDraft(res.Text)
	return draftAttempt{raw: res.Text, result: parsed, schemaErrs: schemaErrs}, res.Provider, res.Model, res.Retries, nil
}

func (o *AIOptimizer) repairDraft(ctx context.Context, source, badOutput string, schemaErrs []string) (DraftResult, error) {
	prompt := buildRepairPrompt(source, badOutput, schemaErrs)
	res, err := o.plan.Call(ctx, prompt, true)
	if err != nil {
		return DraftResult{}, err
	}
	parsed, errs := parseDraft(res.Text)
	if errs != nil {
		return DraftResult{}, fmt.Errorf("schema still invalid after repair: %s", strings.Join(errs, "; "))
	}
	return parsed, nil
}

func (o *AIOptimizer) runGenerateStage(ctx context.Context, source string, draft DraftResult) (string, string, string, int, error) {
	prompt := buildGeneratePrompt(source, draft)
	res, err := o.plan.Call(ctx, prompt, false)
	if err != nil {
		return "", "", "", 0, err
	}

	generated := postProcessGenerated(res.Text)
	if err := sanityCheckGenerated(generated); err != nil {
		return "", res.Provider, res.Model, res.Retries, err
	}
	return generated, res.Provider, res.Model, res.Retries, nil
}

func (o *AIOptimizer) runVerifyStage(ctx context.Context, original, candidate string, draft DraftResult, baseline *model.GasProfile) (verifyResponse, string, string, int, error) {
	prompt := buildVerifyPrompt(original, candidate, draft, baseline)
	res, err := o.plan.Call(ctx, prompt, true)
	if err != nil {
		return verifyResponse{}, "", "", 0, err
	}

	verdict, err := parseVerifyResponse(res.Text)
	if err != nil {
		return verifyResponse{}, res.Provider, res.Model, res.Retries, err
	}
	return verdict, res.Provider, res.Model, res.Retries, nil
}

// postProcessGenerated strips code fences and rewrites two known invalid
// patterns the generate-stage model tends to emit, per spec.md §4.3.
func postProcessGenerated(raw string) string {
	s := stripCodeFences(raw)
	s = uncheckedIncrementRe.ReplaceAllString(s, "++$1;")
	s = requireErrorRe.ReplaceAllString(s, "if (!($1)) revert $2();")
	return strings.TrimSpace(s)
}

// sanityCheckGenerated applies the minimum bar spec.md §4.3 names: the
// generated source must be non-empty, declare a contract, and be at least
// 40 characters.
func sanityCheckGenerated(source string) error {
	if len(source) < 40 {
		return fmt.Errorf("generated source is too short (%d chars)", len(source))
	}
	if !strings.Contains(source, "contract ") {
		return fmt.Errorf("generated source does not declare a contract")
	}
	return nil
}

// compileErrorHints maps a coarse compile-error kind to a canned
// corrective hint, fed back to the AI during the acceptance loop's one
// allowed corrective retry (spec.md §4.4).
var compileErrorHints = map[string]string{
	"storage on value type":  "Do not declare the storage keyword on a value type (uint/int/bool/address); storage only applies to structs, arrays, and mappings.",
	"unrewritten require":    "Replace require(cond, Err()) with if (!(cond)) revert Err();.",
	"malformed unchecked":    "Ensure every unchecked { ... } block is balanced and only wraps the increment expression.",
	"compile":                "Double check that the candidate is syntactically valid, complete Solidity and declares the same contract name as the original.",
}

// classifyCompileErrorKind maps a raw compile/deploy/measure error to one
// of the canned hint keys above.
func classifyCompileErrorKind(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "storage"):
		return "storage on value type"
	case strings.Contains(lower, "require"):
		return "unrewritten require"
	case strings.Contains(lower, "unchecked"):
		return "malformed unchecked"
	default:
		return "compile"
	}
}

// CorrectCompileError asks the AI for one corrective rewrite of candidate
// given the compile/deploy/measure error the worker raised, per the
// acceptance loop's single allowed AI corrective retry (spec.md §4.4).
func (o *AIOptimizer) CorrectCompileError(ctx context.Context, candidate string, compileErr error) (string, error) {
	kind := classifyCompileErrorKind(compileErr)
	hint := compileErrorHints[kind]

	var sb strings.Builder
	sb.WriteString("The following Solidity source failed to compile/deploy/measure with this error:\n")
	sb.WriteString(compileErr.Error())
	sb.WriteString("\n\nHint: ")
	sb.WriteString(hint)
	sb.WriteString("\n\nReturn a corrected, full compilable source only, no commentary, no code fences.\n\n")
	sb.WriteString(candidate)

	res, err := o.plan.Call(ctx, sb.String(), false)
	if err != nil {
		return "", err
	}

	corrected := postProcessGenerated(res.Text)
	if err := sanityCheckGenerated(corrected); err != nil {
		return "", err
	}
	return corrected, nil
}

// staticAntiPatternCheck looks for the compilation anti-patterns named in
// spec.md §4.3: storage keyword on what looks like a value-type literal
// assignment, a require(_, Err()) call the generate-stage rewrite should
// have already removed, and an unbalanced unchecked block.
func staticAntiPatternCheck(source string) string {
	if storageOnLiteralRe.MatchString(source) {
		return "storage keyword applied to a value-type declaration"
	}
	if requireErrorRe.MatchString(source) {
		return "unrewritten require(_, Err()) custom-error pattern"
	}
	if strings.Contains(source, "unchecked {") && strings.Count(source, "{") != strings.Count(source, "}") {
		return "malformed unchecked block"
	}
	return ""
}
