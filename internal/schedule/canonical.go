package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/flowforge/flowforge/internal/apparatus"
)

// EncodeJSON produces the canonical JSON form of the schedule:
//
//	{"<component>": [{"params": {...}, "time": <seconds>}, ...], ...}
//
// Object keys are ordered by UTF-16 code units, strings are NFC
// normalized, HTML characters are not escaped, and times are shortest
// round-trip decimals. Two compilations of the same protocol produce
// byte-identical output.
func (s *Schedule) EncodeJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	names := s.Components()
	slices.SortFunc(names, compareUTF16)

	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := canonicalString(name)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeInstructions(&buf, s.entries[name]); err != nil {
			return nil, fmt.Errorf("component %q: %w", name, err)
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeJSONIndent is EncodeJSON reindented for human reading. Semantics
// are unchanged; indentation is irrelevant to consumers.
func (s *Schedule) EncodeJSONIndent() ([]byte, error) {
	compact, err := s.EncodeJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent schedule JSON: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInstructions(buf *bytes.Buffer, ins []Instruction) error {
	buf.WriteByte('[')
	for i, in := range ins {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"params":`)
		if err := writeParams(buf, in.Params); err != nil {
			return err
		}
		buf.WriteString(`,"time":`)
		buf.WriteString(formatSeconds(in.Time))
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return nil
}

func writeParams(buf *bytes.Buffer, params apparatus.Params) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := canonicalString(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValue(buf, params[k]); err != nil {
			return fmt.Errorf("param %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v apparatus.Value) error {
	switch val := v.(type) {
	case apparatus.QuantityValue:
		s, err := canonicalString(val.Q.String())
		if err != nil {
			return err
		}
		buf.Write(s)
	case apparatus.BoolValue:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case apparatus.IntValue:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case apparatus.StringValue:
		s, err := canonicalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(s)
	default:
		return fmt.Errorf("unsupported parameter value type %T", v)
	}
	return nil
}

// formatSeconds renders a time using the shortest decimal that round-trips
// the float64 exactly, keeping the encoding deterministic and the decoded
// value within any tolerance.
func formatSeconds(t float64) string {
	return strconv.FormatFloat(t, 'g', -1, 64)
}

// canonicalString produces a JSON string with NFC normalization and no
// HTML escaping.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder appends a newline.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// compareUTF16 orders strings by UTF-16 code units, the canonical JSON key
// order. UTF-8 byte order differs for characters beyond the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
