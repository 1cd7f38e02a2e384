package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gasopt/optimizer/internal/model"
)

// buildDraftPrompt asks for the structured {optimizations, edits,
// totalEstimatedSaving} shape named in spec.md §4.3, embedding the source,
// baseline profile, and optional feedback from a prior cycle's failure.
func buildDraftPrompt(source string, baseline *model.GasProfile, feedback string) string {
	var sb strings.Builder
	sb.WriteString("You are optimizing a Solidity contract for gas. ")
	sb.WriteString("Propose at most 3 optimizations. ")
	sb.WriteString("Respond with JSON only: {\"optimizations\":[{\"name\":...,\"description\":...}],")
	sb.WriteString("\"edits\":[{\"action\":\"replace|insert|delete\",\"lineStart\":N,\"lineEnd\":N,\"before\":...,\"after\":...,\"rationale\":...}],")
	sb.WriteString("\"totalEstimatedSaving\":\"...\"}.\n\n")

	sb.WriteString("Source:\n")
	sb.WriteString(source)
	sb.WriteString("\n\n")

	if baseline != nil {
		profileJSON, _ := json.Marshal(baseline)
		sb.WriteString("Baseline gas profile:\n")
		sb.Write(profileJSON)
		sb.WriteString("\n\n")
	}

	if feedback != "" {
		sb.WriteString("The previous attempt failed for this reason, address it: ")
		sb.WriteString(feedback)
		sb.WriteString("\n")
	}

	return sb.String()
}

// buildRepairPrompt is sent when the draft stage's output fails schema
// validation: it includes the original prompt context, the bad output,
// and the enumerated schema errors (spec.md §4.3).
func buildRepairPrompt(source, badOutput string, schemaErrs []string) string {
	var sb strings.Builder
	sb.WriteString("Your previous JSON response was invalid. Fix it and return JSON only, matching the schema exactly.\n\n")
	sb.WriteString("Source:\n")
	sb.WriteString(source)
	sb.WriteString("\n\nYour previous output:\n")
	sb.WriteString(badOutput)
	sb.WriteString("\n\nSchema errors:\n")
	for _, e := range schemaErrs {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildGeneratePrompt asks the generator to apply the draft's edits and
// return a full compilable source that preserves the ABI (spec.md §4.3).
func buildGeneratePrompt(source string, draft DraftResult) string {
	var sb strings.Builder
	sb.WriteString("Apply these edits to the source below. ")
	sb.WriteString("Return a full compilable Solidity source only, no commentary, no code fences. ")
	sb.WriteString("Preserve the public ABI (function names, visibility, and parameter arity).\n\n")

	sb.WriteString("Edits:\n")
	for _, e := range draft.Edits {
		fmt.Fprintf(&sb, "- %s lines %d-%d: %s (%s)\n", e.Action, e.LineStart, e.LineEnd, e.After, e.Rationale)
	}

	sb.WriteString("\nOriginal source:\n")
	sb.WriteString(source)
	return sb.String()
}

// buildVerifyPrompt asks the verifier to approve or reject the candidate,
// given both sources, the edits, and the baseline gas profile (spec.md
// §4.3).
func buildVerifyPrompt(original, candidate string, draft DraftResult, baseline *model.GasProfile) string {
	var sb strings.Builder
	sb.WriteString("Verify that the candidate below is a safe, ABI-preserving gas optimization of the original. ")
	sb.WriteString("Respond with JSON only: {\"approved\":bool,\"summary\":\"...\",\"riskFlags\":[\"...\"]}.\n\n")

	sb.WriteString("Original:\n")
	sb.WriteString(original)
	sb.WriteString("\n\nCandidate:\n")
	sb.WriteString(candidate)

	editsJSON, _ := json.Marshal(draft.Edits)
	sb.WriteString("\n\nEdits applied:\n")
	sb.Write(editsJSON)

	if baseline != nil {
		profileJSON, _ := json.Marshal(baseline)
		sb.WriteString("\n\nBaseline gas profile:\n")
		sb.Write(profileJSON)
	}

	return sb.String()
}
