// Package schedule holds the compiled output of a protocol: per-component,
// time-ordered instruction lists, plus their canonical JSON and YAML
// encodings.
package schedule

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/quantity"
)

// Instruction is one timed parameter assignment. Time is in seconds from
// the start of the protocol.
type Instruction struct {
	Time   float64
	Params apparatus.Params
}

// Schedule is the compiled protocol: an ordered map from component name to
// its instruction timeline. The compiler owns ordering (apparatus insertion
// order); consumers treat a schedule as read-only.
type Schedule struct {
	order   []string
	entries map[string][]Instruction
}

// New creates an empty schedule.
func New() *Schedule {
	return &Schedule{entries: make(map[string][]Instruction)}
}

// Append adds a component's timeline. Appending the same component twice
// replaces its timeline without duplicating it in the ordering.
func (s *Schedule) Append(component string, instructions []Instruction) {
	if _, ok := s.entries[component]; !ok {
		s.order = append(s.order, component)
	}
	s.entries[component] = instructions
}

// Components returns component names in schedule order.
func (s *Schedule) Components() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Instructions returns the timeline for a component, or nil.
func (s *Schedule) Instructions(component string) []Instruction {
	return s.entries[component]
}

// Len returns the number of components with timelines.
func (s *Schedule) Len() int { return len(s.order) }

// Duration returns the time of the latest instruction, in seconds.
func (s *Schedule) Duration() float64 {
	var max float64
	for _, ins := range s.entries {
		for _, in := range ins {
			if in.Time > max {
				max = in.Time
			}
		}
	}
	return max
}

// Equal reports whether two schedules describe the same instruction lists,
// with times compared within the time epsilon.
func (s *Schedule) Equal(o *Schedule) bool {
	if s.Len() != o.Len() {
		return false
	}
	a, b := s.Components(), o.Components()
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	for _, name := range a {
		x, y := s.entries[name], o.entries[name]
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !quantity.TimeEqual(x[i].Time, y[i].Time) {
				return false
			}
			if !paramsEqual(x[i].Params, y[i].Params) {
				return false
			}
		}
	}
	return true
}

func paramsEqual(a, b apparatus.Params) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || renderValue(va) != renderValue(vb) {
			return false
		}
	}
	return true
}

// renderValue gives a comparison key for a parameter value: its canonical
// JSON fragment.
func renderValue(v apparatus.Value) string {
	switch val := v.(type) {
	case apparatus.QuantityValue:
		return "q:" + val.Q.String()
	case apparatus.BoolValue:
		return "b:" + strconv.FormatBool(bool(val))
	case apparatus.IntValue:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case apparatus.StringValue:
		return "s:" + string(val)
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

// EncodeYAML renders the schedule as YAML, a human-friendlier twin of the
// JSON encoding. Component keys sort alphabetically.
func (s *Schedule) EncodeYAML() ([]byte, error) {
	doc := make(map[string][]map[string]any, len(s.order))
	for name, ins := range s.entries {
		list := make([]map[string]any, len(ins))
		for i, in := range ins {
			list[i] = map[string]any{
				"time":   in.Time,
				"params": plainParams(in.Params),
			}
		}
		doc[name] = list
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schedule YAML: %w", err)
	}
	return out, nil
}

// plainParams converts typed parameter values to plain Go values for
// generic encoders.
func plainParams(p apparatus.Params) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case apparatus.QuantityValue:
			out[k] = val.Q.String()
		case apparatus.BoolValue:
			out[k] = bool(val)
		case apparatus.IntValue:
			out[k] = int64(val)
		case apparatus.StringValue:
			out[k] = string(val)
		}
	}
	return out
}
