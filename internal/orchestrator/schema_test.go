package orchestrator

import "testing"

func TestParseDraftValid(t *testing.T) {
	raw := `{"optimizations":[{"name":"cache length"}],"edits":[{"action":"replace","lineStart":1,"lineEnd":2,"before":"a","after":"b","rationale":"r"}],"totalEstimatedSaving":"~5%"}`

	result, errs := parseDraft(raw)
	if errs != nil {
		t.Fatalf("unexpected schema errors: %v", errs)
	}
	if len(result.Optimizations) != 1 || result.Optimizations[0].Name != "cache length" {
		t.Fatalf("unexpected optimizations: %+v", result.Optimizations)
	}
	if result.TotalEstimatedSaving != "~5%" {
		t.Fatalf("TotalEstimatedSaving = %q, want ~5%%", result.TotalEstimatedSaving)
	}
}

// TestParseDraftWrongType covers S5: optimizations sent as a string instead
// of an array must be rejected with a schema error naming the field.
func TestParseDraftWrongType(t *testing.T) {
	raw := `{"optimizations":"oops","edits":[],"totalEstimatedSaving":"0%"}`

	_, errs := parseDraft(raw)
	if errs == nil {
		t.Fatal("expected a schema error for optimizations of the wrong type")
	}
}

func TestParseDraftStripsCodeFencesAndTrailingCommas(t *testing.T) {
	raw := "```json\n{\"optimizations\":[],\"edits\":[],\"totalEstimatedSaving\":\"0%\",}\n```"

	_, errs := parseDraft(raw)
	if errs != nil {
		t.Fatalf("unexpected schema errors after repair: %v", errs)
	}
}

func TestParseDraftRejectsBadEditAction(t *testing.T) {
	raw := `{"optimizations":[],"edits":[{"action":"rewrite","lineStart":1,"lineEnd":1,"before":"","after":"","rationale":""}],"totalEstimatedSaving":"0%"}`

	_, errs := parseDraft(raw)
	if errs == nil {
		t.Fatal("expected a schema error for an invalid edit action")
	}
}

func TestParseVerifyResponse(t *testing.T) {
	raw := `{"approved":true,"summary":"looks good","riskFlags":[]}`

	verdict, err := parseVerifyResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Approved || verdict.Summary != "looks good" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}
