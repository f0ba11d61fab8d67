package apparatus

import (
	"errors"
	"fmt"
	"strings"
)

// StructuralCode categorizes graph invariant violations.
type StructuralCode string

const (
	// ErrCodeBadEndpoint indicates a nil or invalid connection endpoint.
	ErrCodeBadEndpoint StructuralCode = "BAD_ENDPOINT"

	// ErrCodeBadTube indicates an unconstructed tube descriptor.
	ErrCodeBadTube StructuralCode = "BAD_TUBE"

	// ErrCodeNotConnected indicates the undirected projection of the graph
	// is not a single connected component.
	ErrCodeNotConnected StructuralCode = "NOT_CONNECTED"

	// ErrCodeValveMultipleOutputs indicates a valve with more or fewer than
	// one outgoing edge.
	ErrCodeValveMultipleOutputs StructuralCode = "VALVE_MULTIPLE_OUTPUTS"

	// ErrCodeValveUnknownNeighbor indicates a routing entry naming a
	// component that is not connected to the valve.
	ErrCodeValveUnknownNeighbor StructuralCode = "VALVE_UNKNOWN_NEIGHBOR"

	// ErrCodeValveUnmappedInflow indicates a component feeding a valve that
	// has no entry in the valve's routing mapping.
	ErrCodeValveUnmappedInflow StructuralCode = "VALVE_UNMAPPED_INFLOW"
)

// StructuralError reports a violated graph invariant.
type StructuralError struct {
	Code    StructuralCode
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStructural reports whether err is a graph invariant violation,
// unwrapping as needed.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// WarningCode categorizes non-fatal findings.
type WarningCode string

// WarnShortTube flags a tube shorter than its own diameter.
const WarnShortTube WarningCode = "SHORT_TUBE"

// Warning is a non-fatal finding reported during graph construction.
type Warning struct {
	Code    WarningCode
	Message string
}

// Handle is a small integer identifier assigned to each component when it
// first joins an apparatus. All internal bookkeeping keys on handles;
// display names are looked up only for reporting.
type Handle int

// Edge is one directed tube run between two components.
type Edge struct {
	From Handle
	To   Handle
	Tube Tube
}

// Apparatus is the rig graph: a set of components and an ordered sequence
// of directed tube connections between them. Build it incrementally with
// Add, then Validate before compiling protocols against it.
//
// An apparatus is not safe for concurrent mutation, and mutating it after
// a protocol has been compiled against it is undefined.
type Apparatus struct {
	name       string
	components []Component // index = Handle
	handles    map[Component]Handle
	edges      []Edge
	warnings   []Warning
}

// New creates an empty apparatus.
func New(name string) *Apparatus {
	return &Apparatus{
		name:    name,
		handles: make(map[Component]Handle),
	}
}

// Name returns the apparatus name.
func (a *Apparatus) Name() string { return a.name }

// Add connects from to to with the given tube, registering either endpoint
// if it is new. Parallel edges between the same pair are legal; they are
// distinct tube runs.
func (a *Apparatus) Add(from, to Component, tube Tube) error {
	if from == nil || to == nil {
		return &StructuralError{Code: ErrCodeBadEndpoint, Message: "connection endpoints must be non-nil components"}
	}
	if !tube.valid {
		return &StructuralError{Code: ErrCodeBadTube, Message: "tube must be constructed with NewTube"}
	}

	f := a.register(from)
	t := a.register(to)
	a.edges = append(a.edges, Edge{From: f, To: t, Tube: tube})
	a.warnings = append(a.warnings, tube.warnings...)
	return nil
}

// FanIn connects every component in froms to to, all sharing one tube
// descriptor.
func (a *Apparatus) FanIn(froms []Component, to Component, tube Tube) error {
	for _, f := range froms {
		if err := a.Add(f, to, tube); err != nil {
			return err
		}
	}
	return nil
}

// FanOut connects from to every component in tos, all sharing one tube
// descriptor.
func (a *Apparatus) FanOut(from Component, tos []Component, tube Tube) error {
	for _, t := range tos {
		if err := a.Add(from, t, tube); err != nil {
			return err
		}
	}
	return nil
}

func (a *Apparatus) register(c Component) Handle {
	if h, ok := a.handles[c]; ok {
		return h
	}
	h := Handle(len(a.components))
	a.components = append(a.components, c)
	a.handles[c] = h
	return h
}

// HandleOf returns the handle assigned to c, if c belongs to the apparatus.
func (a *Apparatus) HandleOf(c Component) (Handle, bool) {
	h, ok := a.handles[c]
	return h, ok
}

// ComponentAt returns the component a handle was assigned to.
func (a *Apparatus) ComponentAt(h Handle) Component {
	return a.components[h]
}

// Components returns all components in insertion order.
func (a *Apparatus) Components() []Component {
	out := make([]Component, len(a.components))
	copy(out, a.components)
	return out
}

// ActiveComponents returns the active components in insertion order.
func (a *Apparatus) ActiveComponents() []Active {
	var out []Active
	for _, c := range a.components {
		if ac, ok := c.(Active); ok {
			out = append(out, ac)
		}
	}
	return out
}

// Edges returns the connection list in insertion order.
func (a *Apparatus) Edges() []Edge {
	out := make([]Edge, len(a.edges))
	copy(out, a.edges)
	return out
}

// Warnings returns non-fatal findings accumulated during construction.
func (a *Apparatus) Warnings() []Warning {
	out := make([]Warning, len(a.warnings))
	copy(out, a.warnings)
	return out
}

// Validate checks the rig's structural invariants:
//
//  1. the undirected projection of all edges is a single connected
//     component;
//  2. every valve has exactly one outgoing edge;
//  3. every name in a valve's routing mapping is a component actually
//     connected to that valve;
//  4. every component feeding a valve appears in that valve's routing
//     mapping.
//
// The first violation found is returned. Validate is idempotent and
// side-effect free.
func (a *Apparatus) Validate() error {
	if len(a.components) == 0 {
		return &StructuralError{Code: ErrCodeNotConnected, Message: "apparatus has no components"}
	}

	if err := a.checkConnected(); err != nil {
		return err
	}

	valves := a.valveHandles()

	for _, vh := range valves {
		if n := len(a.outgoing(vh)); n != 1 {
			return &StructuralError{
				Code:    ErrCodeValveMultipleOutputs,
				Message: fmt.Sprintf("valve %s must have exactly one output, has %d", a.components[vh].Name(), n),
			}
		}
	}

	for _, vh := range valves {
		valve := a.components[vh].(Routable)
		neighbors := a.neighborNames(vh)
		for name := range valve.Routing() {
			if !neighbors[name] {
				return &StructuralError{
					Code:    ErrCodeValveUnknownNeighbor,
					Message: fmt.Sprintf("valve %s routes to %q, but no such component is connected to it", valve.Name(), name),
				}
			}
		}
	}

	for _, vh := range valves {
		valve := a.components[vh].(Routable)
		routing := valve.Routing()
		for _, e := range a.edges {
			if e.To != vh {
				continue
			}
			name := a.components[e.From].Name()
			if _, ok := routing[name]; !ok {
				return &StructuralError{
					Code:    ErrCodeValveUnmappedInflow,
					Message: fmt.Sprintf("valve %s has incomplete routing: no mapping for %q", valve.Name(), name),
				}
			}
		}
	}

	return nil
}

// checkConnected runs a DFS over the undirected projection of the edges.
func (a *Apparatus) checkConnected() error {
	adjacency := make(map[Handle][]Handle, len(a.components))
	for _, e := range a.edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
		adjacency[e.To] = append(adjacency[e.To], e.From)
	}

	visited := make([]bool, len(a.components))
	stack := []Handle{0}
	visited[0] = true
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range adjacency[h] {
			if !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}

	var orphans []string
	for h, seen := range visited {
		if !seen {
			orphans = append(orphans, a.components[h].Name())
		}
	}
	if len(orphans) > 0 {
		return &StructuralError{
			Code:    ErrCodeNotConnected,
			Message: fmt.Sprintf("not all components connected: %s unreachable", strings.Join(orphans, ", ")),
		}
	}
	return nil
}

func (a *Apparatus) valveHandles() []Handle {
	var out []Handle
	for h, c := range a.components {
		if _, ok := c.(Routable); ok {
			out = append(out, Handle(h))
		}
	}
	return out
}

func (a *Apparatus) outgoing(h Handle) []Edge {
	var out []Edge
	for _, e := range a.edges {
		if e.From == h {
			out = append(out, e)
		}
	}
	return out
}

// neighborNames collects the names of every component sharing an edge with
// h, in either direction.
func (a *Apparatus) neighborNames(h Handle) map[string]bool {
	out := make(map[string]bool)
	for _, e := range a.edges {
		if e.From == h {
			out[a.components[e.To].Name()] = true
		}
		if e.To == h {
			out[a.components[e.From].Name()] = true
		}
	}
	return out
}

// Describe renders the apparatus as plain language, one sentence per
// connection.
func (a *Apparatus) Describe() string {
	var b strings.Builder
	for _, e := range a.edges {
		from := phrase(a.components[e.From], true)
		to := phrase(a.components[e.To], false)
		fmt.Fprintf(&b, "%s was connected to %s using %s tubing (length %s, ID %s, OD %s). ",
			from, to, e.Tube.Material, e.Tube.Length, e.Tube.ID, e.Tube.OD)
	}
	return strings.TrimRight(b.String(), " ")
}

func phrase(c Component, capitalize bool) string {
	if v, ok := c.(*Vessel); ok {
		article := "a"
		if capitalize {
			article = "A"
		}
		return fmt.Sprintf("%s vessel containing %s", article, v.Description())
	}
	return c.Kind() + " " + c.Name()
}
