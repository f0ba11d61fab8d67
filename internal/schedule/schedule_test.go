package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/apparatus"
)

func pumpSchedule() *Schedule {
	s := New()
	s.Append("pump", []Instruction{
		{Time: 0, Params: apparatus.Params{"rate": apparatus.Q("1 mL/min")}},
		{Time: 10, Params: apparatus.Params{"rate": apparatus.Q("0 mL/min")}},
	})
	return s
}

func TestAppendAndOrder(t *testing.T) {
	s := New()
	s.Append("b", []Instruction{{Time: 0, Params: apparatus.Params{"rate": apparatus.Q("1 mL/min")}}})
	s.Append("a", []Instruction{{Time: 0, Params: apparatus.Params{"rate": apparatus.Q("2 mL/min")}}})

	// Schedule order is append order, not alphabetical.
	assert.Equal(t, []string{"b", "a"}, s.Components())
	assert.Equal(t, 2, s.Len())

	// Re-appending replaces without duplicating.
	s.Append("b", []Instruction{{Time: 5, Params: apparatus.Params{"rate": apparatus.Q("3 mL/min")}}})
	assert.Equal(t, []string{"b", "a"}, s.Components())
	assert.Equal(t, 5.0, s.Instructions("b")[0].Time)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 10.0, pumpSchedule().Duration())
	assert.Equal(t, 0.0, New().Duration())
}

func TestEqual(t *testing.T) {
	assert.True(t, pumpSchedule().Equal(pumpSchedule()))

	// Times within the epsilon compare equal.
	a := pumpSchedule()
	b := New()
	b.Append("pump", []Instruction{
		{Time: 5e-10, Params: apparatus.Params{"rate": apparatus.Q("1 mL/min")}},
		{Time: 10, Params: apparatus.Params{"rate": apparatus.Q("0 mL/min")}},
	})
	assert.True(t, a.Equal(b))

	c := New()
	c.Append("pump", []Instruction{
		{Time: 0, Params: apparatus.Params{"rate": apparatus.Q("2 mL/min")}},
		{Time: 10, Params: apparatus.Params{"rate": apparatus.Q("0 mL/min")}},
	})
	assert.False(t, a.Equal(c))
}

func TestEncodeJSON(t *testing.T) {
	out, err := pumpSchedule().EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"pump":[{"params":{"rate":"1 mL/min"},"time":0},{"params":{"rate":"0 mL/min"},"time":10}]}`,
		string(out))
}

func TestEncodeJSONParamKeyOrder(t *testing.T) {
	s := New()
	s.Append("heater", []Instruction{
		{Time: 0, Params: apparatus.Params{
			"temp":   apparatus.Q("50 degC"),
			"active": apparatus.BoolValue(true),
		}},
	})
	out, err := s.EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"heater":[{"params":{"active":true,"temp":"50 degC"},"time":0}]}`,
		string(out))
}

func TestEncodeJSONKeyOrderIsUTF16(t *testing.T) {
	s := New()
	// U+FE6B sorts before U+1F600 in UTF-8 bytes but after it in UTF-16
	// code units; canonical order is UTF-16.
	s.Append("﹫", []Instruction{{Time: 0, Params: apparatus.Params{"x": apparatus.IntValue(1)}}})
	s.Append("\U0001F600", []Instruction{{Time: 0, Params: apparatus.Params{"x": apparatus.IntValue(2)}}})

	out, err := s.EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"😀":[{"params":{"x":2},"time":0}],"﹫":[{"params":{"x":1},"time":0}]}`,
		string(out))
}

func TestEncodeJSONNormalizesNFC(t *testing.T) {
	s := New()
	// "e" followed by a combining acute accent normalizes to U+00E9.
	s.Append("café", []Instruction{{Time: 0, Params: apparatus.Params{"x": apparatus.IntValue(1)}}})

	out, err := s.EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"café":[{"params":{"x":1},"time":0}]}`, string(out))
}

func TestEncodeJSONNoHTMLEscaping(t *testing.T) {
	s := New()
	s.Append("a<b", []Instruction{{Time: 0, Params: apparatus.Params{"x": apparatus.IntValue(1)}}})

	out, err := s.EncodeJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"a<b"`)
}

func TestEncodeJSONTimes(t *testing.T) {
	s := New()
	s.Append("pump", []Instruction{
		{Time: 0.5, Params: apparatus.Params{"rate": apparatus.Q("1 mL/min")}},
		{Time: 90, Params: apparatus.Params{"rate": apparatus.Q("0 mL/min")}},
	})
	out, err := s.EncodeJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"time":0.5`)
	assert.Contains(t, string(out), `"time":90`)
}

func TestEncodeJSONIndentRoundTrips(t *testing.T) {
	s := pumpSchedule()
	pretty, err := s.EncodeJSONIndent()
	require.NoError(t, err)

	decoded, err := Decode(pretty)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded))
}

func TestDecodeRoundTrip(t *testing.T) {
	s := New()
	s.Append("pump", []Instruction{
		{Time: 0, Params: apparatus.Params{"rate": apparatus.Q("1 mL/min")}},
		{Time: 10.5, Params: apparatus.Params{"rate": apparatus.Q("0 mL/min")}},
	})
	s.Append("valve", []Instruction{
		{Time: 0, Params: apparatus.Params{"setting": apparatus.IntValue(2)}},
		{Time: 10.5, Params: apparatus.Params{"setting": apparatus.IntValue(1)}},
	})
	s.Append("heater", []Instruction{
		{Time: 0, Params: apparatus.Params{"temp": apparatus.Q("50 degC"), "active": apparatus.BoolValue(true)}},
		{Time: 10.5, Params: apparatus.Params{"temp": apparatus.Q("0 degC"), "active": apparatus.BoolValue(false)}},
	})

	encoded, err := s.EncodeJSON()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded), "decoded schedule differs from source")

	// And the decoded schedule re-encodes to the same bytes.
	reencoded, err := decoded.EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t, string(encoded), string(reencoded))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"pump":[{"params":{"rate":1.5},"time":0}]}`))
	assert.ErrorContains(t, err, "non-integral")
}

func TestEncodeYAML(t *testing.T) {
	out, err := pumpSchedule().EncodeYAML()
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "pump:")
	assert.Contains(t, text, "rate: 1 mL/min")
	assert.Contains(t, text, "time: 10")
}
