package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/protocol"
	"github.com/flowforge/flowforge/internal/rig"
)

// ValidationReport is the JSON payload of a successful validation.
type ValidationReport struct {
	Apparatus  string   `json:"apparatus"`
	Components int      `json:"components"`
	Edges      int      `json:"edges"`
	Warnings   []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rig.cue>",
		Short: "Validate a rig definition's graph topology",
		Long: `Load a rig definition and check its structural invariants:
connectivity, single valve outputs, and routing completeness.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	r, err := loadRig(formatter, path)
	if err != nil {
		return err
	}

	// Loading already validated the graph (protocol construction requires
	// it); re-validate explicitly so the command stays meaningful if the
	// loader ever defers it.
	if err := r.Apparatus.Validate(); err != nil {
		var se *apparatus.StructuralError
		code := "STRUCTURAL"
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	report := ValidationReport{
		Apparatus:  r.Apparatus.Name(),
		Components: len(r.Apparatus.Components()),
		Edges:      len(r.Apparatus.Edges()),
	}
	for _, w := range r.Apparatus.Warnings() {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", w.Code, w.Message))
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid: %d component(s), %d connection(s)\n",
		report.Apparatus, report.Components, report.Edges)
	for _, w := range report.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w)
	}
	return nil
}

// loadRig loads a rig definition, reporting load errors with positions and
// returning a command-level exit error.
func loadRig(formatter *OutputFormatter, path string) (*rig.Rig, error) {
	formatter.VerboseLog("Loading rig definition %s", path)

	r, err := rig.Load(path)
	if err != nil {
		var se *apparatus.StructuralError
		if errors.As(err, &se) {
			// Invalid topology is a validation failure, not a command error.
			_ = formatter.Error(string(se.Code), err.Error(), nil)
			return nil, WrapExitError(ExitFailure, "validation failed", err)
		}
		if code := protocol.CodeOf(err); code != "" {
			// A rejected procedure is a failure of the protocol, not of the
			// command invocation.
			_ = formatter.Error(string(code), err.Error(), nil)
			return nil, WrapExitError(ExitFailure, "protocol rejected", err)
		}
		var loadErr *rig.LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error("RIG_DEFINITION", loadErr.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "rig definition error", err)
		}
		_ = formatter.Error("RIG_LOAD", err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load rig", err)
	}
	return r, nil
}
