// Package apparatus models a flow-chemistry rig as a directed graph of
// components joined by tubing, and validates the rig's structural
// invariants before a protocol may be compiled against it.
package apparatus

import (
	"fmt"

	"github.com/flowforge/flowforge/internal/quantity"
)

// Component is any addressable node in the apparatus graph. Identity is by
// object identity; names are unique within one apparatus by convention.
type Component interface {
	// Name returns the component's stable, human-chosen name.
	Name() string
	// Kind returns the component's kind for reporting, e.g. "Pump".
	Kind() string
}

// AttrKind tags an attribute's value type in a component schema.
type AttrKind int

const (
	// AttrQuantity is a physical quantity with a fixed dimension.
	AttrQuantity AttrKind = iota
	// AttrBool is a plain boolean.
	AttrBool
	// AttrString is a plain (possibly enumerated) string.
	AttrString
	// AttrInt is a plain integer.
	AttrInt
)

func (k AttrKind) String() string {
	switch k {
	case AttrQuantity:
		return "quantity"
	case AttrBool:
		return "bool"
	case AttrString:
		return "string"
	case AttrInt:
		return "int"
	default:
		return fmt.Sprintf("AttrKind(%d)", int(k))
	}
}

// Attr describes one settable attribute. Dim is meaningful only when Kind
// is AttrQuantity.
type Attr struct {
	Kind AttrKind
	Dim  quantity.Dimension
}

// Schema maps attribute names to their declared types. Components declare
// their settable surface explicitly; nothing is discovered by reflection.
type Schema map[string]Attr

// Stateful is a component with inspectable, settable attributes.
type Stateful interface {
	Component
	Schema() Schema
}

// Active is a component whose state can be commanded over time. BaseState
// is the idle configuration the compiler reverts the component to when no
// procedure is in effect.
type Active interface {
	Stateful
	BaseState() Params
}

// Routable is an active component that routes flow between named
// neighbors, i.e. a valve. Routing maps a neighbor component name to the
// valve's internal port identifier.
type Routable interface {
	Active
	Routing() map[string]int
}

// ThermallyControlled marks active components that get the temperature
// defaulting treatment when procedures are added: setting temp implies
// active, deactivating implies temp zero, and activating without a
// temperature is an error.
type ThermallyControlled interface {
	Active
	thermallyControlled()
}

// Value is a sealed interface over the types a procedure parameter may
// take: a physical quantity, a bool, a string, or an integer.
type Value interface {
	paramValue()
}

// QuantityValue wraps a physical quantity.
type QuantityValue struct{ Q quantity.Quantity }

func (QuantityValue) paramValue() {}

// BoolValue is a plain boolean parameter.
type BoolValue bool

func (BoolValue) paramValue() {}

// StringValue is a plain string parameter.
type StringValue string

func (StringValue) paramValue() {}

// IntValue is a plain integer parameter.
type IntValue int64

func (IntValue) paramValue() {}

// Q parses a quantity expression into a parameter value, panicking on bad
// input. For statically known expressions.
func Q(s string) QuantityValue {
	return QuantityValue{Q: quantity.MustParse(s)}
}

// Params is a mapping from attribute name to target value.
type Params map[string]Value

// Clone returns a shallow copy; values are immutable.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
