// Package rig loads declarative rig definitions written in CUE and builds
// the apparatus graph and protocol they describe.
//
// A rig file has two top-level structs:
//
//	apparatus: {
//		name: "Synthesizer"
//		components: {
//			substrate: {kind: "vessel", description: "substrate 1M in DMAc"}
//			pump_a:    {kind: "pump"}
//			inlet:     {kind: "valve", routing: {substrate: 1, rinse: 2}}
//		}
//		connections: [
//			{from: "substrate", to: "pump_a", tube: {
//				length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
//			}},
//		]
//	}
//	protocol: {
//		name:     "rinse"            // optional
//		duration: "20 seconds"       // optional; "auto" infers from stops
//		steps: [
//			{component: "pump_a", start: "0 seconds", duration: "10 seconds",
//			 params: {rate: "1 mL/min"}},
//		]
//	}
//
// from, to and component accept either a single name or a list of names;
// lists expand to one edge or procedure per name, sharing the same tube or
// timing.
package rig

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/protocol"
)

// Rig is a loaded definition: the apparatus graph and the protocol bound
// to it, ready to compile.
type Rig struct {
	Apparatus *apparatus.Apparatus
	Protocol  *protocol.Protocol
}

// LoadError is a rig definition error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and builds a rig definition file.
func Load(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Build(v)
}

// Build constructs a rig from an evaluated CUE value.
func Build(v cue.Value) (*Rig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	appVal := v.LookupPath(cue.ParsePath("apparatus"))
	if !appVal.Exists() {
		return nil, &LoadError{Field: "apparatus", Message: "apparatus is required", Pos: v.Pos()}
	}

	app, byName, err := buildApparatus(appVal)
	if err != nil {
		return nil, err
	}

	protoVal := v.LookupPath(cue.ParsePath("protocol"))
	if !protoVal.Exists() {
		return nil, &LoadError{Field: "protocol", Message: "protocol is required", Pos: v.Pos()}
	}

	proto, err := buildProtocol(protoVal, app, byName)
	if err != nil {
		return nil, err
	}

	return &Rig{Apparatus: app, Protocol: proto}, nil
}

func buildApparatus(v cue.Value) (*apparatus.Apparatus, map[string]apparatus.Component, error) {
	name := "apparatus"
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, nil, formatCUEError(err)
		}
		name = s
	}

	app := apparatus.New(name)
	byName := make(map[string]apparatus.Component)

	compsVal := v.LookupPath(cue.ParsePath("components"))
	if !compsVal.Exists() {
		return nil, nil, &LoadError{Field: "apparatus.components", Message: "components are required", Pos: v.Pos()}
	}
	iter, err := compsVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}
	for iter.Next() {
		compName := iter.Label()
		c, err := buildComponent(compName, iter.Value())
		if err != nil {
			return nil, nil, err
		}
		byName[compName] = c
	}

	connsVal := v.LookupPath(cue.ParsePath("connections"))
	if !connsVal.Exists() {
		return nil, nil, &LoadError{Field: "apparatus.connections", Message: "connections are required", Pos: v.Pos()}
	}
	connIter, err := connsVal.List()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}
	for i := 0; connIter.Next(); i++ {
		if err := buildConnection(i, connIter.Value(), app, byName); err != nil {
			return nil, nil, err
		}
	}

	return app, byName, nil
}

func buildComponent(name string, v cue.Value) (apparatus.Component, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &LoadError{Field: "components." + name, Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch kind {
	case "vessel":
		description := ""
		if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
			if description, err = d.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		return apparatus.NewVessel(name, description), nil

	case "pump":
		return apparatus.NewPump(name), nil

	case "mixer":
		return apparatus.NewTMixer(name), nil

	case "sensor":
		return apparatus.NewSensor(name), nil

	case "temp_control":
		return apparatus.NewTempControl(name), nil

	case "valve":
		routingVal := v.LookupPath(cue.ParsePath("routing"))
		if !routingVal.Exists() {
			return nil, &LoadError{Field: "components." + name, Message: "valve requires a routing mapping", Pos: v.Pos()}
		}
		routing := make(map[string]int)
		iter, err := routingVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			port, err := iter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			routing[iter.Label()] = int(port)
		}
		return apparatus.NewValve(name, routing), nil

	default:
		return nil, &LoadError{
			Field:   "components." + name,
			Message: fmt.Sprintf("unknown component kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

func buildConnection(index int, v cue.Value, app *apparatus.Apparatus, byName map[string]apparatus.Component) error {
	field := fmt.Sprintf("connections[%d]", index)

	froms, err := componentList(v.LookupPath(cue.ParsePath("from")), field+".from", byName)
	if err != nil {
		return err
	}
	tos, err := componentList(v.LookupPath(cue.ParsePath("to")), field+".to", byName)
	if err != nil {
		return err
	}

	tubeVal := v.LookupPath(cue.ParsePath("tube"))
	if !tubeVal.Exists() {
		return &LoadError{Field: field + ".tube", Message: "tube is required", Pos: v.Pos()}
	}
	tube, err := buildTube(tubeVal, field+".tube")
	if err != nil {
		return err
	}

	for _, f := range froms {
		for _, t := range tos {
			if err := app.Add(f, t, tube); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
		}
	}
	return nil
}

func buildTube(v cue.Value, field string) (apparatus.Tube, error) {
	var parts [4]string
	for i, key := range []string{"length", "id", "od", "material"} {
		pv := v.LookupPath(cue.ParsePath(key))
		if !pv.Exists() {
			return apparatus.Tube{}, &LoadError{Field: field, Message: key + " is required", Pos: v.Pos()}
		}
		s, err := pv.String()
		if err != nil {
			return apparatus.Tube{}, formatCUEError(err)
		}
		parts[i] = s
	}
	tube, err := apparatus.NewTube(parts[0], parts[1], parts[2], parts[3])
	if err != nil {
		return apparatus.Tube{}, &LoadError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return tube, nil
}

// componentList resolves a name or list of names to components.
func componentList(v cue.Value, field string, byName map[string]apparatus.Component) ([]apparatus.Component, error) {
	if !v.Exists() {
		return nil, &LoadError{Field: field, Message: "endpoint is required", Pos: v.Pos()}
	}

	var names []string
	if s, err := v.String(); err == nil {
		names = []string{s}
	} else {
		iter, err := v.List()
		if err != nil {
			return nil, &LoadError{Field: field, Message: "must be a component name or list of names", Pos: v.Pos()}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			names = append(names, s)
		}
	}

	out := make([]apparatus.Component, len(names))
	for i, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, &LoadError{Field: field, Message: fmt.Sprintf("unknown component %q", name), Pos: v.Pos()}
		}
		out[i] = c
	}
	return out, nil
}

func buildProtocol(v cue.Value, app *apparatus.Apparatus, byName map[string]apparatus.Component) (*protocol.Protocol, error) {
	name := app.Name() + "-protocol"
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}

	duration := ""
	if durVal := v.LookupPath(cue.ParsePath("duration")); durVal.Exists() {
		s, err := durVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		duration = s
	}

	proto, err := protocol.New(name, app, duration)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &LoadError{Field: "protocol.steps", Message: "steps are required", Pos: v.Pos()}
	}
	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		if err := buildStep(i, iter.Value(), proto, byName); err != nil {
			return nil, err
		}
	}

	return proto, nil
}

func buildStep(index int, v cue.Value, proto *protocol.Protocol, byName map[string]apparatus.Component) error {
	field := fmt.Sprintf("steps[%d]", index)

	components, err := componentList(v.LookupPath(cue.ParsePath("component")), field+".component", byName)
	if err != nil {
		return err
	}

	var opts []protocol.Option
	for key, opt := range map[string]func(string) protocol.Option{
		"start":    protocol.Start,
		"stop":     protocol.Stop,
		"duration": protocol.For,
	} {
		if tv := v.LookupPath(cue.ParsePath(key)); tv.Exists() {
			s, err := tv.String()
			if err != nil {
				return formatCUEError(err)
			}
			opts = append(opts, opt(s))
		}
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return &LoadError{Field: field + ".params", Message: "params are required", Pos: v.Pos()}
	}
	params, err := buildParams(paramsVal, field+".params")
	if err != nil {
		return err
	}

	if err := proto.AddAll(components, params, opts...); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func buildParams(v cue.Value, field string) (apparatus.Params, error) {
	params := make(apparatus.Params)
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		pv := iter.Value()

		switch pv.IncompleteKind() {
		case cue.StringKind:
			s, err := pv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			params[name] = apparatus.StringValue(s)
		case cue.BoolKind:
			b, err := pv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			params[name] = apparatus.BoolValue(b)
		case cue.IntKind:
			n, err := pv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			params[name] = apparatus.IntValue(n)
		default:
			return nil, &LoadError{
				Field:   field + "." + name,
				Message: fmt.Sprintf("unsupported parameter kind %v; use string, bool or int", pv.IncompleteKind()),
				Pos:     pv.Pos(),
			}
		}
	}
	return params, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
