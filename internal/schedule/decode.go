package schedule

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/quantity"
)

// rawInstruction mirrors the JSON encoding of one instruction.
type rawInstruction struct {
	Time   float64        `json:"time"`
	Params map[string]any `json:"params"`
}

// Decode parses the JSON encoding back into a Schedule. Component order is
// the canonical key order, since JSON objects carry none. Parameter strings
// that parse as physical quantities come back as quantities, so an encoded
// schedule decodes Equal to its source.
func Decode(data []byte) (*Schedule, error) {
	var raw map[string][]rawInstruction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.SortFunc(names, compareUTF16)

	s := New()
	for _, name := range names {
		ins := make([]Instruction, len(raw[name]))
		for i, ri := range raw[name] {
			params := make(apparatus.Params, len(ri.Params))
			for k, v := range ri.Params {
				val, err := decodeValue(v)
				if err != nil {
					return nil, fmt.Errorf("decode schedule: %s[%d].%s: %w", name, i, k, err)
				}
				params[k] = val
			}
			ins[i] = Instruction{Time: ri.Time, Params: params}
		}
		s.Append(name, ins)
	}
	return s, nil
}

func decodeValue(v any) (apparatus.Value, error) {
	switch val := v.(type) {
	case string:
		if q, err := quantity.Parse(val); err == nil && q.Dimension() != quantity.Dimensionless {
			return apparatus.QuantityValue{Q: q}, nil
		}
		return apparatus.StringValue(val), nil
	case bool:
		return apparatus.BoolValue(val), nil
	case float64:
		// JSON numbers arrive as float64; settings are integral.
		if val == float64(int64(val)) {
			return apparatus.IntValue(int64(val)), nil
		}
		return nil, fmt.Errorf("non-integral numeric parameter %v", val)
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}
