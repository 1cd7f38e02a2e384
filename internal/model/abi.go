package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ABIInput is one parameter of an ABI function fragment. Components is set
// only for tuple types.
type ABIInput struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Components   []ABIInput `json:"components,omitempty"`
}

// ABIFunction is one function fragment of a contract ABI, trimmed to the
// fields this system cares about.
type ABIFunction struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Inputs          []ABIInput `json:"inputs"`
	Outputs         []ABIInput `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability"`
}

// ParseABI decodes a compiler-produced ABI JSON array into the function
// fragments only (events/errors are irrelevant to gas accounting and
// compatibility checks).
func ParseABI(raw []byte) ([]ABIFunction, error) {
	var all []ABIFunction
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	fns := make([]ABIFunction, 0, len(all))
	for _, f := range all {
		if f.Type == "" || f.Type == "function" {
			fns = append(fns, f)
		}
	}
	return fns, nil
}

// CanonicalSignature renders name(type1,type2,...) using ABI-canonical type
// names, per spec.md §3/GLOSSARY. Tuple components are expanded recursively.
func (f ABIFunction) CanonicalSignature() string {
	parts := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		parts[i] = canonicalType(in)
	}
	return f.Name + "(" + strings.Join(parts, ",") + ")"
}

func canonicalType(in ABIInput) string {
	if !strings.HasPrefix(in.Type, "tuple") {
		return in.Type
	}
	suffix := strings.TrimPrefix(in.Type, "tuple")
	parts := make([]string, len(in.Components))
	for i, c := range in.Components {
		parts[i] = canonicalType(c)
	}
	return "(" + strings.Join(parts, ",") + ")" + suffix
}

// looseEntry is the arity+mutability-only normalization used by
// ABICompatible below (see spec.md §4.4 and Open Questions: this
// implementation picks the looser rule so that a parameter's data location
// — memory vs. calldata — never breaks compatibility, at the cost of not
// catching a same-arity input-type or return-type change).
type looseEntry struct {
	name       string
	arity      int
	mutability string
}

// ABICompatible reports whether candidate is ABI-compatible with baseline
// under the looser arity+mutability-only normalization: the multiset of
// {name, input arity, stateMutability} triples must match exactly. This
// tolerates a function whose parameter changed from memory to calldata (or
// vice versa) — the textual ABI type differs but arity and mutability do
// not — while still rejecting an added/removed function or an arity change.
func ABICompatible(baseline, candidate []ABIFunction) bool {
	return looseMultiset(baseline) == looseMultiset(candidate)
}

func looseMultiset(fns []ABIFunction) string {
	entries := make([]string, 0, len(fns))
	for _, f := range fns {
		entries = append(entries, fmt.Sprintf("%s/%d/%s", f.Name, len(f.Inputs), f.StateMutability))
	}
	// Sort for order-independent comparison without pulling in sort just
	// for two small slices — simple insertion sort is plenty here.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1] > entries[j]; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	return strings.Join(entries, "|")
}
