package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/apparatus"
)

func testTube(t *testing.T) apparatus.Tube {
	t.Helper()
	tube, err := apparatus.NewTube("20 cm", "1 mm", "2 mm", "PFA")
	require.NoError(t, err)
	return tube
}

// testRig wires feed -> pump -> heater -> flask and feed2 -> dummy -> flask.
func testRig(t *testing.T) (*apparatus.Apparatus, *apparatus.Pump, *apparatus.TempControl, *apparatus.DummyPump) {
	t.Helper()
	tube := testTube(t)

	pump := apparatus.NewPump("pump")
	heater := apparatus.NewTempControl("heater")
	dummy := apparatus.NewDummyPump("dummy")
	flask := apparatus.NewVessel("flask", "product")

	a := apparatus.New("test rig")
	require.NoError(t, a.Add(apparatus.NewVessel("feed", "water"), pump, tube))
	require.NoError(t, a.Add(pump, heater, tube))
	require.NoError(t, a.Add(heater, flask, tube))
	require.NoError(t, a.Add(apparatus.NewVessel("feed2", "acetone"), dummy, tube))
	require.NoError(t, a.Add(dummy, flask, tube))
	return a, pump, heater, dummy
}

// valveRig wires feedA and feedB into a valve draining to a flask.
func valveRig(t *testing.T) (*apparatus.Apparatus, *apparatus.Valve) {
	t.Helper()
	tube := testTube(t)

	feedA := apparatus.NewVessel("feedA", "water")
	feedB := apparatus.NewVessel("feedB", "acetone")
	valve := apparatus.NewValve("valve", map[string]int{"feedA": 1, "feedB": 2})
	flask := apparatus.NewVessel("flask", "product")

	a := apparatus.New("valve rig")
	require.NoError(t, a.FanIn([]apparatus.Component{feedA, feedB}, valve, tube))
	require.NoError(t, a.Add(valve, flask, tube))
	return a, valve
}

func TestNewRejectsBadDuration(t *testing.T) {
	a, _, _, _ := testRig(t)

	_, err := New("p", a, "5 grams")
	assert.True(t, IsCode(err, ErrCodeBadDuration), "got %v", err)

	_, err = New("p", a, "gibberish")
	assert.True(t, IsCode(err, ErrCodeBadDuration), "got %v", err)
}

func TestNewValidatesApparatus(t *testing.T) {
	_, err := New("p", apparatus.New("empty"), "1 minute")
	assert.True(t, apparatus.IsStructural(err), "got %v", err)
}

func TestAddMembership(t *testing.T) {
	a, _, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	stray := apparatus.NewPump("stray")
	err = p.Add(stray, apparatus.Params{"rate": apparatus.Q("1 mL/min")})
	assert.True(t, IsCode(err, ErrCodeMembership), "got %v", err)
}

func TestAddPassiveComponent(t *testing.T) {
	a, _, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	for _, c := range a.Components() {
		if c.Name() == "flask" {
			err = p.Add(c, apparatus.Params{"rate": apparatus.Q("1 mL/min")})
			assert.True(t, IsCode(err, ErrCodeUnknownAttribute), "got %v", err)
			return
		}
	}
	t.Fatal("flask not found")
}

func TestAddEmptyParams(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{})
	assert.True(t, IsCode(err, ErrCodeEmptyProcedure), "got %v", err)
}

func TestAddUnknownAttribute(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{"pressure": apparatus.Q("1 mL/min")})
	assert.True(t, IsCode(err, ErrCodeUnknownAttribute), "got %v", err)
	assert.ErrorContains(t, err, "rate")
}

func TestAddDimensionality(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("50 degC")})
	assert.True(t, IsCode(err, ErrCodeDimensionality), "got %v", err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.StringValue("5 grams")})
	assert.True(t, IsCode(err, ErrCodeDimensionality), "got %v", err)
}

func TestAddNormalizesStringQuantities(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	require.NoError(t, p.Add(pump, apparatus.Params{"rate": apparatus.StringValue("5 mL/min")}))
	require.Len(t, p.procedures, 1)
	assert.Equal(t, apparatus.Q("5 mL/min"), p.procedures[0].params["rate"])
}

func TestAddTypeMismatch(t *testing.T) {
	a, _, _, dummy := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(dummy, apparatus.Params{"active": apparatus.Q("1 mL/min")})
	assert.True(t, IsCode(err, ErrCodeTypeMismatch), "got %v", err)

	err = p.Add(dummy, apparatus.Params{"rate": apparatus.BoolValue(true)})
	assert.True(t, IsCode(err, ErrCodeTypeMismatch), "got %v", err)
}

func TestAddValveSugar(t *testing.T) {
	a, valve := valveRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	require.NoError(t, p.Add(valve, apparatus.Params{"setting": apparatus.StringValue("feedB")}))
	require.Len(t, p.procedures, 1)
	assert.Equal(t, apparatus.IntValue(2), p.procedures[0].params["setting"])

	// Numeric settings pass through untouched.
	require.NoError(t, p.Add(valve, apparatus.Params{"setting": apparatus.IntValue(1)}, Start("10 seconds")))
	assert.Equal(t, apparatus.IntValue(1), p.procedures[1].params["setting"])
}

func TestAddValveUnknownSetting(t *testing.T) {
	a, valve := valveRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(valve, apparatus.Params{"setting": apparatus.StringValue("ghost")})
	assert.True(t, IsCode(err, ErrCodeUnknownSetting), "got %v", err)
}

func TestAddConflictingTimeSpec(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")},
		Stop("30 seconds"), For("30 seconds"))
	assert.True(t, IsCode(err, ErrCodeConflictingTimeSpec), "got %v", err)
}

func TestAddForComputesStop(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	require.NoError(t, p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")},
		Start("10 seconds"), For("20 seconds")))
	require.NotNil(t, p.procedures[0].stop)
	sec, err := p.procedures[0].stop.Seconds()
	require.NoError(t, err)
	assert.Equal(t, 30.0, sec)
}

func TestAddUnboundedDuration(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")})
	assert.True(t, IsCode(err, ErrCodeUnboundedDuration), "got %v", err)

	// An explicit stop makes the same call legal.
	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")}, Stop("30 seconds"))
	assert.NoError(t, err)
}

func TestAddRejectsNonTimeTimings(t *testing.T) {
	a, pump, _, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")}, Start("5 grams"))
	assert.True(t, IsCode(err, ErrCodeDimensionality), "got %v", err)

	err = p.Add(pump, apparatus.Params{"rate": apparatus.Q("1 mL/min")}, Stop("5 mL"))
	assert.True(t, IsCode(err, ErrCodeDimensionality), "got %v", err)
}

func TestAddThermalDefaults(t *testing.T) {
	a, _, heater, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	// A setpoint alone implies activation.
	require.NoError(t, p.Add(heater, apparatus.Params{"temp": apparatus.Q("50 degC")}))
	assert.Equal(t, apparatus.BoolValue(true), p.procedures[0].params["active"])

	// Deactivation alone defaults the setpoint to zero.
	require.NoError(t, p.Add(heater, apparatus.Params{"active": apparatus.BoolValue(false)}, Start("30 seconds")))
	assert.Equal(t, apparatus.Q("0 degC"), p.procedures[1].params["temp"])

	// Activation without a setpoint is an error.
	err = p.Add(heater, apparatus.Params{"active": apparatus.BoolValue(true)})
	assert.True(t, IsCode(err, ErrCodeMissingTemperature), "got %v", err)
}

func TestAddAll(t *testing.T) {
	a, pump, _, dummy := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	require.NoError(t, p.AddAll(
		[]apparatus.Component{pump, dummy},
		apparatus.Params{"rate": apparatus.Q("2 mL/min")},
		Stop("30 seconds"),
	))
	require.Len(t, p.procedures, 2)
	assert.NotEqual(t, p.procedures[0].handle, p.procedures[1].handle)
}

func TestAddDoesNotMutateCallerParams(t *testing.T) {
	a, _, heater, _ := testRig(t)
	p, err := New("p", a, "1 minute")
	require.NoError(t, err)

	params := apparatus.Params{"temp": apparatus.Q("50 degC")}
	require.NoError(t, p.Add(heater, params))
	_, leaked := params["active"]
	assert.False(t, leaked, "thermal defaulting must not touch the caller's map")
}
