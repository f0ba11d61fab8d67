// Package protocol accumulates per-component procedures against a
// validated apparatus and compiles them into a deterministic, gap-filled
// instruction timeline per active component.
package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/quantity"
)

// Auto is the duration sentinel meaning "infer the protocol duration as
// the latest procedure stop at compile time".
const Auto = "auto"

// Protocol owns an ordered list of raw procedures for one apparatus. The
// apparatus is shared, not owned, and must outlive the protocol.
//
// A protocol is built by one logical author: Add and Compile must not be
// called concurrently. Compile may be called repeatedly; it recomputes from
// the raw procedure list each time, so adding after compiling simply feeds
// the next compilation.
type Protocol struct {
	name       string
	app        *apparatus.Apparatus
	duration   *quantity.Quantity // nil unless a literal duration was declared
	auto       bool
	procedures []procedure
}

// procedure is one raw request: set params on a component over an
// interval. Never mutated after insertion; stop inference during
// compilation works on copies.
type procedure struct {
	handle        apparatus.Handle
	component     apparatus.Active
	start         quantity.Quantity
	startImplicit bool // start was defaulted, not given by the author
	stop          *quantity.Quantity
	params        apparatus.Params
}

// New creates a protocol for a validated apparatus. duration may be empty
// (every procedure must carry its own end), the Auto sentinel, or a literal
// time expression such as "3 minutes".
func New(name string, app *apparatus.Apparatus, duration string) (*Protocol, error) {
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("apparatus %s: %w", app.Name(), err)
	}

	p := &Protocol{name: name, app: app}
	switch duration {
	case "":
	case Auto:
		p.auto = true
	default:
		q, err := quantity.Parse(duration)
		if err != nil {
			return nil, errf(ErrCodeBadDuration, "", "%v", err)
		}
		if !q.IsTime() {
			return nil, errf(ErrCodeBadDuration, "", "%s is not a valid protocol duration, must be a time", duration)
		}
		p.duration = &q
	}
	return p, nil
}

// Name returns the protocol name.
func (p *Protocol) Name() string { return p.name }

// Apparatus returns the rig the protocol is bound to.
func (p *Protocol) Apparatus() *apparatus.Apparatus { return p.app }

// addSpec holds the optional timing of one Add call.
type addSpec struct {
	start    string
	startSet bool
	stop     string
	dur      string
}

// Option configures the timing of an Add call.
type Option func(*addSpec)

// Start sets the procedure start time relative to the start of the
// protocol, e.g. Start("5 seconds"). Defaults to the start of the protocol.
func Start(expr string) Option {
	return func(s *addSpec) { s.start = expr; s.startSet = true }
}

// Stop sets the absolute stop time of the procedure. Mutually exclusive
// with For.
func Stop(expr string) Option {
	return func(s *addSpec) { s.stop = expr }
}

// For sets the procedure duration, converted to an absolute stop at the
// Add call. Mutually exclusive with Stop.
func For(expr string) Option {
	return func(s *addSpec) { s.dur = expr }
}

// Add appends one raw procedure setting params on c. Timing is given via
// Start, Stop and For options; with no options the procedure spans the
// whole protocol.
func (p *Protocol) Add(c apparatus.Component, params apparatus.Params, opts ...Option) error {
	spec := addSpec{start: "0 seconds"}
	for _, opt := range opts {
		opt(&spec)
	}
	return p.addSingle(c, params, spec)
}

// AddAll appends one raw procedure per component, all with identical
// timing and parameters.
func (p *Protocol) AddAll(cs []apparatus.Component, params apparatus.Params, opts ...Option) error {
	for _, c := range cs {
		if err := p.Add(c, params, opts...); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) addSingle(c apparatus.Component, params apparatus.Params, spec addSpec) error {
	handle, ok := p.app.HandleOf(c)
	if !ok {
		return errf(ErrCodeMembership, c.Name(), "not a component of apparatus %s", p.app.Name())
	}

	active, ok := c.(apparatus.Active)
	if !ok {
		return errf(ErrCodeUnknownAttribute, c.Name(), "%s %s has no controllable attributes", c.Kind(), c.Name())
	}

	params = params.Clone()

	// Valve sugar: translate a human-readable neighbor name through the
	// routing mapping. Numeric settings pass through untouched.
	if valve, ok := c.(apparatus.Routable); ok {
		if setting, present := params["setting"]; present {
			if name, isName := setting.(apparatus.StringValue); isName {
				port, known := valve.Routing()[string(name)]
				if !known {
					return errf(ErrCodeUnknownSetting, c.Name(), "valve has no route named %q", string(name))
				}
				params["setting"] = apparatus.IntValue(port)
			}
		}
	}

	if len(params) == 0 {
		return errf(ErrCodeEmptyProcedure, c.Name(), "no parameters supplied; a procedure must manipulate at least one attribute")
	}

	schema := active.Schema()
	for name, value := range params {
		checked, err := checkParam(active, schema, name, value)
		if err != nil {
			return err
		}
		params[name] = checked
	}

	if spec.stop != "" && spec.dur != "" {
		return errf(ErrCodeConflictingTimeSpec, c.Name(), "provide one of stop and duration, not both")
	}

	start, err := parseTime(spec.start, "start", c.Name())
	if err != nil {
		return err
	}

	var stop *quantity.Quantity
	if spec.dur != "" {
		dur, err := parseTime(spec.dur, "duration", c.Name())
		if err != nil {
			return err
		}
		sum, err := start.Add(dur)
		if err != nil {
			return errf(ErrCodeDimensionality, c.Name(), "%v", err)
		}
		stop = &sum
	} else if spec.stop != "" {
		q, err := parseTime(spec.stop, "stop", c.Name())
		if err != nil {
			return err
		}
		stop = &q
	}

	if stop == nil && p.duration == nil && !p.auto {
		return errf(ErrCodeUnboundedDuration, c.Name(),
			"no stop or duration given and protocol %s has no declared duration; declare one (or use duration=%q) to omit them", p.name, Auto)
	}

	if tc, ok := c.(apparatus.ThermallyControlled); ok {
		if err := applyThermalDefaults(tc, params); err != nil {
			return err
		}
	}

	p.procedures = append(p.procedures, procedure{
		handle:        handle,
		component:     active,
		start:         start,
		startImplicit: !spec.startSet,
		stop:          stop,
		params:        params,
	})
	return nil
}

// checkParam validates one parameter against the component schema and
// normalizes string-typed quantities into parsed quantity values.
func checkParam(c apparatus.Active, schema apparatus.Schema, name string, value apparatus.Value) (apparatus.Value, error) {
	attr, ok := schema[name]
	if !ok {
		return nil, errf(ErrCodeUnknownAttribute, c.Name(),
			"invalid attribute %q; valid attributes are %s", name, strings.Join(schemaNames(schema), ", "))
	}

	switch attr.Kind {
	case apparatus.AttrQuantity:
		var q quantity.Quantity
		switch v := value.(type) {
		case apparatus.QuantityValue:
			q = v.Q
		case apparatus.StringValue:
			parsed, err := quantity.Parse(string(v))
			if err != nil {
				return nil, errf(ErrCodeDimensionality, c.Name(), "attribute %q: %v", name, err)
			}
			q = parsed
		default:
			return nil, errf(ErrCodeTypeMismatch, c.Name(),
				"attribute %q expects a physical quantity, got %T", name, value)
		}
		if q.Dimension() != attr.Dim {
			return nil, errf(ErrCodeDimensionality, c.Name(),
				"bad dimensionality of %q: expected %s, got %s", name, attr.Dim, q.Dimension())
		}
		return apparatus.QuantityValue{Q: q}, nil

	case apparatus.AttrBool:
		if _, ok := value.(apparatus.BoolValue); !ok {
			return nil, errf(ErrCodeTypeMismatch, c.Name(), "attribute %q expects a bool, got %T", name, value)
		}
	case apparatus.AttrInt:
		if _, ok := value.(apparatus.IntValue); !ok {
			return nil, errf(ErrCodeTypeMismatch, c.Name(), "attribute %q expects an int, got %T", name, value)
		}
	case apparatus.AttrString:
		if _, ok := value.(apparatus.StringValue); !ok {
			return nil, errf(ErrCodeTypeMismatch, c.Name(), "attribute %q expects a string, got %T", name, value)
		}
	}
	return value, nil
}

// applyThermalDefaults implements the temperature controller conveniences:
// a setpoint implies activation, explicit deactivation defaults the
// setpoint to zero, and activation without a setpoint is an error.
func applyThermalDefaults(tc apparatus.ThermallyControlled, params apparatus.Params) error {
	_, hasTemp := params["temp"]
	activeVal, hasActive := params["active"]

	switch {
	case hasTemp && !hasActive:
		params["active"] = apparatus.BoolValue(true)
	case hasActive && activeVal == apparatus.BoolValue(false) && !hasTemp:
		params["temp"] = apparatus.Q("0 degC")
	case hasActive && activeVal == apparatus.BoolValue(true) && !hasTemp:
		return errf(ErrCodeMissingTemperature, tc.Name(),
			"activated but no temperature setting given; specify temp")
	}
	return nil
}

func parseTime(expr, label, component string) (quantity.Quantity, error) {
	q, err := quantity.Parse(expr)
	if err != nil {
		return quantity.Quantity{}, errf(ErrCodeDimensionality, component, "%s: %v", label, err)
	}
	if !q.IsTime() {
		return quantity.Quantity{}, errf(ErrCodeDimensionality, component,
			"%s %q must be a quantity of time, got %s", label, expr, q.Dimension())
	}
	return q, nil
}

func schemaNames(s apparatus.Schema) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
