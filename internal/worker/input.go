package worker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gasopt/optimizer/internal/model"
)

// InputSynthesizer produces deterministic ABI input values so gas
// estimation is repeatable across runs of the same source, per spec.md
// §4.9. It has no state; every method is a pure function of its arguments.
type InputSynthesizer struct{}

func NewInputSynthesizer() *InputSynthesizer {
	return &InputSynthesizer{}
}

const maxNestingDepth = 4

// SynthesizeArgs builds one value per input of fn, in order.
func (s *InputSynthesizer) SynthesizeArgs(inputs []model.ABIInput) ([]interface{}, error) {
	args := make([]interface{}, len(inputs))
	for i, in := range inputs {
		v, err := s.synthesizeValue(in, i, 0)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (s *InputSynthesizer) synthesizeValue(in model.ABIInput, index, depth int) (interface{}, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("Unsupported nested type depth")
	}

	t := in.Type

	if strings.HasSuffix(t, "[]") {
		elem := in
		elem.Type = strings.TrimSuffix(t, "[]")
		elem.Components = in.Components
		first, err := s.synthesizeValue(elem, index, depth+1)
		if err != nil {
			return nil, err
		}
		second, err := s.synthesizeValue(elem, index+1, depth+1)
		if err != nil {
			return nil, err
		}
		return []interface{}{first, second}, nil
	}

	if n, ok := fixedArrayLen(t); ok {
		elem := in
		elem.Type = fixedArrayElemType(t)
		elem.Components = in.Components
		values := make([]interface{}, n)
		for i := 0; i < n; i++ {
			v, err := s.synthesizeValue(elem, index+i, depth+1)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}

	if strings.HasPrefix(t, "tuple") {
		values := make(map[string]interface{}, len(in.Components))
		for _, c := range in.Components {
			v, err := s.synthesizeValue(c, index, depth+1)
			if err != nil {
				return nil, err
			}
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("field%d", len(values))
			}
			values[name] = v
		}
		return values, nil
	}

	switch {
	case isIntType(t):
		return index + 1, nil
	case t == "address":
		return fmt.Sprintf("0x%040x", index+1), nil
	case t == "bool":
		return index%2 == 0, nil
	case t == "string":
		return fmt.Sprintf("gweizero_%d", index), nil
	case t == "bytes":
		return "0x1234", nil
	case isFixedBytesType(t):
		n, _ := fixedBytesLen(t)
		return "0x" + strings.Repeat("11", n), nil
	default:
		return nil, fmt.Errorf("Unsupported ABI type: %s", t)
	}
}

// SynthesizeJSON renders the args as a JSON array. SubprocessRunner does not
// use it: the measure phase receives its arguments through a callSpec file.
func (s *InputSynthesizer) SynthesizeJSON(inputs []model.ABIInput) ([]byte, error) {
	args, err := s.SynthesizeArgs(inputs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(args)
}

func isIntType(t string) bool {
	if t == "uint" || t == "int" {
		return true
	}
	if strings.HasPrefix(t, "uint") {
		_, err := strconv.Atoi(strings.TrimPrefix(t, "uint"))
		return err == nil
	}
	if strings.HasPrefix(t, "int") {
		_, err := strconv.Atoi(strings.TrimPrefix(t, "int"))
		return err == nil
	}
	return false
}

func isFixedBytesType(t string) bool {
	if !strings.HasPrefix(t, "bytes") {
		return false
	}
	_, err := fixedBytesLen(t)
	return err == nil
}

func fixedBytesLen(t string) (int, error) {
	suffix := strings.TrimPrefix(t, "bytes")
	if suffix == "" {
		return 0, fmt.Errorf("not fixed-size")
	}
	return strconv.Atoi(suffix)
}

// fixedArrayLen reports whether t is T[N] and returns N.
func fixedArrayLen(t string) (int, bool) {
	if !strings.HasSuffix(t, "]") {
		return 0, false
	}
	open := strings.LastIndex(t, "[")
	if open == -1 {
		return 0, false
	}
	inner := t[open+1 : len(t)-1]
	if inner == "" {
		return 0, false
	}
	n, err := strconv.Atoi(inner)
	if err != nil {
		return 0, false
	}
	return n, true
}

func fixedArrayElemType(t string) string {
	open := strings.LastIndex(t, "[")
	return t[:open]
}
