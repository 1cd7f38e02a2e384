package model

import (
	"encoding/json"
	"fmt"
)

// Mutability is a Solidity function's state mutability, as reported by the
// compiler's ABI.
type Mutability string

const (
	MutabilityView       Mutability = "view"
	MutabilityPure       Mutability = "pure"
	MutabilityNonpayable Mutability = "nonpayable"
	MutabilityPayable    Mutability = "payable"
)

// FunctionGasEntry is a sum type: a function was either measured (it ran
// under the gas estimator) or it was not (interface/abstract skip, revert on
// every synthesized input, etc). Exactly one of Measured/Unmeasured is set;
// callers should use IsMeasured rather than checking fields directly.
type FunctionGasEntry struct {
	Mutability Mutability

	measured bool
	gasUsed  int64
	reason   string
}

// Measured builds a FunctionGasEntry for a function that was successfully
// estimated.
func Measured(gasUsed int64, mut Mutability) FunctionGasEntry {
	return FunctionGasEntry{Mutability: mut, measured: true, gasUsed: gasUsed}
}

// Unmeasured builds a FunctionGasEntry for a function the estimator could
// not run, with a short sanitized reason.
func Unmeasured(reason string, mut Mutability) FunctionGasEntry {
	return FunctionGasEntry{Mutability: mut, measured: false, reason: reason}
}

// IsMeasured reports whether GasUsed is meaningful.
func (f FunctionGasEntry) IsMeasured() bool { return f.measured }

// GasUsed returns the measured gas, or 0 if unmeasured.
func (f FunctionGasEntry) GasUsed() int64 { return f.gasUsed }

// Reason returns the unmeasured reason, or "" if measured.
func (f FunctionGasEntry) Reason() string { return f.reason }

// MarshalJSON renders the entry as either {gasUsed, mutability} or
// {reason, mutability}, matching spec.md §3's FunctionGasEntry shape.
func (f FunctionGasEntry) MarshalJSON() ([]byte, error) {
	if f.measured {
		return []byte(fmt.Sprintf(`{"gasUsed":%d,"mutability":%q}`, f.gasUsed, f.Mutability)), nil
	}
	return []byte(fmt.Sprintf(`{"reason":%q,"mutability":%q}`, f.reason, f.Mutability)), nil
}

// UnmarshalJSON accepts either shape.
func (f *FunctionGasEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		GasUsed    *int64     `json:"gasUsed"`
		Reason     *string    `json:"reason"`
		Mutability Mutability `json:"mutability"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Mutability = raw.Mutability
	if raw.GasUsed != nil {
		f.measured = true
		f.gasUsed = *raw.GasUsed
		return nil
	}
	f.measured = false
	if raw.Reason != nil {
		f.reason = *raw.Reason
	}
	return nil
}

// GasProfile is the deployment cost plus per-function measurements for one
// compiled contract, keyed by canonical function signature.
type GasProfile struct {
	DeploymentGas int64                        `json:"deploymentGas"`
	Functions     map[string]FunctionGasEntry  `json:"functions"`
	ABI           []byte                       `json:"abi,omitempty"`
	Bytecode      string                       `json:"bytecode,omitempty"`
	ContractName  string                       `json:"contractName,omitempty"`
}

// AverageMutableFunctionGas averages GasUsed over measured entries whose
// mutability is nonpayable or payable, per spec.md §4.4. Returns 0 if no
// such entries exist.
func (p *GasProfile) AverageMutableFunctionGas() float64 {
	if p == nil {
		return 0
	}
	var sum float64
	var count int
	for _, fn := range p.Functions {
		if !fn.IsMeasured() {
			continue
		}
		if fn.Mutability != MutabilityNonpayable && fn.Mutability != MutabilityPayable {
			continue
		}
		sum += float64(fn.GasUsed())
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
