package apparatus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTube(t *testing.T) {
	tube, err := NewTube("20 cm", "1.0 mm", "1/16 in", "Tefzel")
	require.NoError(t, err)

	assert.Equal(t, "Tefzel", tube.Material)
	assert.Empty(t, tube.warnings)

	// volume = pi * (ID/2)^2 * length
	want := math.Pi * 0.0005 * 0.0005 * 0.2 // m^3
	assert.InDelta(t, want, tube.Volume.Magnitude(), 1e-15)
}

func TestNewTubeRejectsInvertedDiameters(t *testing.T) {
	_, err := NewTube("20 cm", "2 mm", "1 mm", "PFA")
	assert.ErrorContains(t, err, "must be greater than inner diameter")

	// Equal diameters are rejected too.
	_, err = NewTube("20 cm", "1 mm", "1 mm", "PFA")
	assert.Error(t, err)
}

func TestNewTubeRejectsNonLengths(t *testing.T) {
	_, err := NewTube("20 seconds", "1 mm", "2 mm", "PFA")
	assert.ErrorContains(t, err, "not a length")

	_, err = NewTube("20 cm", "1 mL", "2 mm", "PFA")
	assert.Error(t, err)
}

func TestNewTubeShortLengthWarns(t *testing.T) {
	tube, err := NewTube("1 mm", "1 mm", "3 mm", "PFA")
	require.NoError(t, err)
	require.Len(t, tube.warnings, 1)
	assert.Equal(t, WarnShortTube, tube.warnings[0].Code)
}

func TestMustTubePanics(t *testing.T) {
	assert.Panics(t, func() { MustTube("20 cm", "2 mm", "1 mm", "PFA") })
}
