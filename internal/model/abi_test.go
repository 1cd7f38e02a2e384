package model

import "testing"

func TestCanonicalSignature(t *testing.T) {
	fn := ABIFunction{
		Name: "transfer",
		Inputs: []ABIInput{
			{Type: "address"},
			{Type: "uint256"},
		},
	}
	if got, want := fn.CanonicalSignature(), "transfer(address,uint256)"; got != want {
		t.Fatalf("CanonicalSignature() = %q, want %q", got, want)
	}
}

func TestCanonicalSignatureTuple(t *testing.T) {
	fn := ABIFunction{
		Name: "batch",
		Inputs: []ABIInput{
			{Type: "tuple[]", Components: []ABIInput{{Type: "address"}, {Type: "uint256"}}},
		},
	}
	if got, want := fn.CanonicalSignature(), "batch((address,uint256)[])"; got != want {
		t.Fatalf("CanonicalSignature() = %q, want %q", got, want)
	}
}

// TestABICompatibleMemoryVsCalldata covers property 7: a candidate that
// differs from the baseline only by a parameter's data location is still
// ABI-compatible under the arity+mutability-only rule.
func TestABICompatibleMemoryVsCalldata(t *testing.T) {
	baseline := []ABIFunction{
		{Name: "seedValues", Inputs: []ABIInput{{Type: "uint256[]"}}, StateMutability: "nonpayable"},
	}
	candidate := []ABIFunction{
		// Same name/arity/mutability; a real ABI would differ in internalType
		// (memory vs calldata), which ABICompatible never inspects.
		{Name: "seedValues", Inputs: []ABIInput{{Type: "uint256[]", InternalType: "uint256[] calldata"}}, StateMutability: "nonpayable"},
	}

	if !ABICompatible(baseline, candidate) {
		t.Fatal("expected memory/calldata-only difference to be ABI-compatible")
	}
}

func TestABICompatibleRejectsNewFunction(t *testing.T) {
	baseline := []ABIFunction{
		{Name: "seedValues", Inputs: []ABIInput{{Type: "uint256[]"}}, StateMutability: "nonpayable"},
	}
	candidate := []ABIFunction{
		{Name: "seedValues", Inputs: []ABIInput{{Type: "uint256[]"}}, StateMutability: "nonpayable"},
		{Name: "backdoor", Inputs: []ABIInput{}, StateMutability: "nonpayable"},
	}

	if ABICompatible(baseline, candidate) {
		t.Fatal("expected an added function to break ABI compatibility")
	}
}

func TestABICompatibleRejectsArityChange(t *testing.T) {
	baseline := []ABIFunction{
		{Name: "setValue", Inputs: []ABIInput{{Type: "uint256"}}, StateMutability: "nonpayable"},
	}
	candidate := []ABIFunction{
		{Name: "setValue", Inputs: []ABIInput{{Type: "uint256"}, {Type: "bool"}}, StateMutability: "nonpayable"},
	}

	if ABICompatible(baseline, candidate) {
		t.Fatal("expected an arity change to break ABI compatibility")
	}
}

func TestParseABIFiltersToFunctions(t *testing.T) {
	raw := []byte(`[
		{"type":"constructor","inputs":[]},
		{"type":"function","name":"foo","inputs":[],"stateMutability":"view"},
		{"type":"event","name":"Transfer","inputs":[]}
	]`)

	fns, err := ParseABI(raw)
	if err != nil {
		t.Fatalf("ParseABI returned error: %v", err)
	}
	if len(fns) != 1 || fns[0].Name != "foo" {
		t.Fatalf("expected only the function fragment, got %+v", fns)
	}
}
