package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const basicRig = `apparatus: {
	name: "basic rig"
	components: {
		feed:  {kind: "vessel", description: "water"}
		pump:  {kind: "pump"}
		flask: {kind: "vessel", description: "product"}
	}
	connections: [
		{from: "feed", to: "pump", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
		{from: "pump", to: "flask", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
	]
}

protocol: {
	name:     "basic"
	duration: "20 seconds"
	steps: [
		{component: "pump", stop: "10 seconds", params: {rate: "1 mL/min"}},
	]
}
`

// disconnectedRig fails structural validation: two islands.
const disconnectedRig = `apparatus: {
	components: {
		feed:  {kind: "vessel", description: "water"}
		pump:  {kind: "pump"}
		lone:  {kind: "vessel", description: "orphan"}
		drain: {kind: "vessel", description: "orphan"}
	}
	connections: [
		{from: "feed", to: "pump", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
		{from: "lone", to: "drain", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
	]
}

protocol: {
	duration: "10 seconds"
	steps: []
}
`

// badKindRig is a definition error, not a validation failure.
const badKindRig = `apparatus: {
	components: {
		reactor: {kind: "flux_capacitor"}
	}
	connections: []
}

protocol: {
	steps: []
}
`

// outOfBoundsRig compiles cleanly at load time but fails at compile time.
const outOfBoundsRig = `apparatus: {
	components: {
		feed:  {kind: "vessel", description: "water"}
		pump:  {kind: "pump"}
		flask: {kind: "vessel", description: "product"}
	}
	connections: [
		{from: "feed", to: "pump", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
		{from: "pump", to: "flask", tube: {
			length: "20 cm", id: "1.0 mm", od: "1/16 in", material: "Tefzel",
		}},
	]
}

protocol: {
	duration: "20 seconds"
	steps: [
		{component: "pump", stop: "25 seconds", params: {rate: "1 mL/min"}},
	]
}
`

func writeRig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
