package worker

import (
	"testing"

	"github.com/gasopt/optimizer/internal/model"
)

func TestSynthesizeArgsScalarTypes(t *testing.T) {
	s := NewInputSynthesizer()

	args, err := s.SynthesizeArgs([]model.ABIInput{
		{Type: "uint256"},
		{Type: "address"},
		{Type: "bool"},
		{Type: "string"},
		{Type: "bytes"},
		{Type: "bytes4"},
	})
	if err != nil {
		t.Fatalf("SynthesizeArgs returned error: %v", err)
	}

	if args[0] != 1 {
		t.Fatalf("uint256 arg = %v, want 1", args[0])
	}
	if args[1] != "0x0000000000000000000000000000000000000002" {
		t.Fatalf("address arg = %v, want a deterministic 20-byte hex value", args[1])
	}
	if args[2] != true {
		t.Fatalf("bool arg at even index = %v, want true", args[2])
	}
	if args[3] != "gweizero_3" {
		t.Fatalf("string arg = %v, want gweizero_3", args[3])
	}
	if args[4] != "0x1234" {
		t.Fatalf("bytes arg = %v, want 0x1234", args[4])
	}
	if args[5] != "0x11111111" {
		t.Fatalf("bytes4 arg = %v, want 4 repeated bytes", args[5])
	}
}

func TestSynthesizeArgsDynamicArray(t *testing.T) {
	s := NewInputSynthesizer()

	args, err := s.SynthesizeArgs([]model.ABIInput{{Type: "uint256[]"}})
	if err != nil {
		t.Fatalf("SynthesizeArgs returned error: %v", err)
	}

	values, ok := args[0].([]interface{})
	if !ok || len(values) != 2 {
		t.Fatalf("dynamic array arg = %v, want a 2-element slice", args[0])
	}
}

func TestSynthesizeArgsFixedArray(t *testing.T) {
	s := NewInputSynthesizer()

	args, err := s.SynthesizeArgs([]model.ABIInput{{Type: "uint256[3]"}})
	if err != nil {
		t.Fatalf("SynthesizeArgs returned error: %v", err)
	}

	values, ok := args[0].([]interface{})
	if !ok || len(values) != 3 {
		t.Fatalf("fixed array arg = %v, want a 3-element slice", args[0])
	}
}

func TestSynthesizeArgsTuple(t *testing.T) {
	s := NewInputSynthesizer()

	args, err := s.SynthesizeArgs([]model.ABIInput{
		{
			Type: "tuple",
			Components: []model.ABIInput{
				{Name: "amount", Type: "uint256"},
				{Name: "recipient", Type: "address"},
			},
		},
	})
	if err != nil {
		t.Fatalf("SynthesizeArgs returned error: %v", err)
	}

	fields, ok := args[0].(map[string]interface{})
	if !ok {
		t.Fatalf("tuple arg = %v, want a map", args[0])
	}
	if _, ok := fields["amount"]; !ok {
		t.Fatal("expected tuple field \"amount\" to be set")
	}
	if _, ok := fields["recipient"]; !ok {
		t.Fatal("expected tuple field \"recipient\" to be set")
	}
}

func TestSynthesizeArgsRejectsUnsupportedType(t *testing.T) {
	s := NewInputSynthesizer()

	if _, err := s.SynthesizeArgs([]model.ABIInput{{Type: "function"}}); err == nil {
		t.Fatal("expected an error for an unsupported ABI type")
	}
}

func TestSynthesizeArgsRejectsExcessiveNesting(t *testing.T) {
	s := NewInputSynthesizer()

	deeplyNested := model.ABIInput{Type: "uint256[][][][][]"}
	if _, err := s.SynthesizeArgs([]model.ABIInput{deeplyNested}); err == nil {
		t.Fatal("expected an error for nesting beyond the supported depth")
	}
}
