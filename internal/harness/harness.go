package harness

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/protocol"
	"github.com/flowforge/flowforge/internal/rig"
)

// Run executes one scenario: load the rig, compile its protocol, and
// assert the expected outcome. Golden schedules live in testdata/golden;
// regenerate them with `go test ./internal/harness -update`.
func Run(t *testing.T, scenario *Scenario) {
	t.Helper()

	r, err := rig.Load(scenario.Rig)

	if scenario.Expect.ErrorCode != "" {
		// Errors may surface at load time (Add rejections, structural
		// failures) or at compile time.
		if err == nil {
			_, _, err = r.Protocol.Compile()
		}
		require.Error(t, err, "scenario %s: expected error %s", scenario.Name, scenario.Expect.ErrorCode)
		require.Equal(t, scenario.Expect.ErrorCode, errorCode(err),
			"scenario %s: wrong error code (%v)", scenario.Name, err)
		return
	}

	require.NoError(t, err, "scenario %s: rig failed to load", scenario.Name)

	sched, warnings, err := r.Protocol.Compile()
	require.NoError(t, err, "scenario %s: compilation failed", scenario.Name)

	codes := make([]string, len(warnings))
	for i, w := range warnings {
		codes[i] = string(w.Code)
	}
	if scenario.Expect.Warnings != nil {
		require.Equal(t, scenario.Expect.Warnings, codes, "scenario %s: warnings", scenario.Name)
	} else {
		require.Empty(t, codes, "scenario %s: unexpected warnings", scenario.Name)
	}

	encoded, err := sched.EncodeJSON()
	require.NoError(t, err, "scenario %s: encoding failed", scenario.Name)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Expect.Golden, encoded)
}

// errorCode extracts the protocol or structural error code from err.
func errorCode(err error) string {
	if code := protocol.CodeOf(err); code != "" {
		return string(code)
	}
	var se *apparatus.StructuralError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return ""
}
