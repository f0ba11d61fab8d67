package apparatus

import "github.com/flowforge/flowforge/internal/quantity"

// Vessel is a passive container. It has no settable attributes; it exists
// so feeds and collection flasks can appear in the graph.
type Vessel struct {
	name        string
	description string
}

// NewVessel creates a vessel holding the described contents.
func NewVessel(name, description string) *Vessel {
	return &Vessel{name: name, description: description}
}

func (v *Vessel) Name() string { return v.name }
func (v *Vessel) Kind() string { return "Vessel" }

// Description returns what the vessel contains.
func (v *Vessel) Description() string { return v.description }

// TMixer is a passive T-junction joining two inlet streams.
type TMixer struct {
	name string
}

// NewTMixer creates a T-mixer.
func NewTMixer(name string) *TMixer { return &TMixer{name: name} }

func (m *TMixer) Name() string { return m.name }
func (m *TMixer) Kind() string { return "TMixer" }

// Sensor is a passive inline probe. Reading it is a driver concern; the
// compiler only needs it as a graph node.
type Sensor struct {
	name string
}

// NewSensor creates a sensor.
func NewSensor(name string) *Sensor { return &Sensor{name: name} }

func (s *Sensor) Name() string { return s.name }
func (s *Sensor) Kind() string { return "Sensor" }

// Pump is an active component with a single flow-rate attribute. Its idle
// state is zero flow.
type Pump struct {
	name string
}

// NewPump creates a pump.
func NewPump(name string) *Pump { return &Pump{name: name} }

func (p *Pump) Name() string { return p.name }
func (p *Pump) Kind() string { return "Pump" }

func (p *Pump) Schema() Schema {
	return Schema{
		"rate": {Kind: AttrQuantity, Dim: quantity.FlowRate},
	}
}

func (p *Pump) BaseState() Params {
	return Params{"rate": Q("0 mL/min")}
}

// Valve is an active component that routes its single output to one of
// several named inlets. The routing mapping translates neighbor names to
// internal port identifiers; port 1 is the idle setting.
type Valve struct {
	name    string
	routing map[string]int
}

// NewValve creates a valve with the given neighbor-name to port mapping.
func NewValve(name string, routing map[string]int) *Valve {
	return &Valve{name: name, routing: routing}
}

func (v *Valve) Name() string { return v.name }
func (v *Valve) Kind() string { return "Valve" }

func (v *Valve) Schema() Schema {
	return Schema{
		"setting": {Kind: AttrInt},
	}
}

func (v *Valve) BaseState() Params {
	return Params{"setting": IntValue(1)}
}

func (v *Valve) Routing() map[string]int { return v.routing }

// TempControl is an active heater/chiller with an on/off switch and a
// temperature setpoint. Idle is off at 0 degC.
type TempControl struct {
	name string
}

// NewTempControl creates a temperature controller.
func NewTempControl(name string) *TempControl { return &TempControl{name: name} }

func (t *TempControl) Name() string { return t.name }
func (t *TempControl) Kind() string { return "TempControl" }

func (t *TempControl) Schema() Schema {
	return Schema{
		"temp":   {Kind: AttrQuantity, Dim: quantity.Temperature},
		"active": {Kind: AttrBool},
	}
}

func (t *TempControl) BaseState() Params {
	return Params{"temp": Q("0 degC"), "active": BoolValue(false)}
}

func (t *TempControl) thermallyControlled() {}

// DummyPump is a pump variant with an extra plain attribute, used by tests
// to exercise type checking of non-quantity parameters.
type DummyPump struct {
	Pump
}

// NewDummyPump creates a dummy pump.
func NewDummyPump(name string) *DummyPump {
	return &DummyPump{Pump: Pump{name: name}}
}

func (d *DummyPump) Kind() string { return "DummyPump" }

func (d *DummyPump) Schema() Schema {
	return Schema{
		"rate":   {Kind: AttrQuantity, Dim: quantity.FlowRate},
		"active": {Kind: AttrBool},
	}
}

func (d *DummyPump) BaseState() Params {
	return Params{"rate": Q("0 mL/min"), "active": BoolValue(false)}
}
