package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/archive"
	"github.com/flowforge/flowforge/internal/protocol"
	"github.com/flowforge/flowforge/internal/schedule"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path
	YAML    bool   // emit YAML instead of JSON
	Quiet   bool   // suppress compilation warnings
	Archive string // archive database path; empty disables archiving
}

// CompileReport is the JSON payload of a successful compilation.
type CompileReport struct {
	Protocol   string          `json:"protocol"`
	Components int             `json:"components"`
	DurationS  float64         `json:"duration_s"`
	Warnings   []string        `json:"warnings,omitempty"`
	RunID      string          `json:"run_id,omitempty"`
	Schedule   json.RawMessage `json:"schedule"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rig.cue>",
		Short: "Compile a rig's protocol into a per-device schedule",
		Long: `Load a rig definition, validate its graph, and compile the protocol
into the canonical per-device instruction schedule.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the schedule to a file")
	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "emit YAML instead of JSON")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress compilation warnings")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "archive the compiled run in this database")

	return cmd
}

func runCompileCmd(opts *CompileOptions, path string, cmd *cobra.Command) error {
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

	sched, warnings, err := r.Protocol.Compile()
	if err != nil {
		code := protocol.CodeOf(err)
		if code == "" {
			code = "COMPILE"
		}
		_ = formatter.Error(string(code), err.Error(), nil)
		return WrapExitError(ExitFailure, "compilation failed", err)
	}

	if !opts.Quiet {
		for _, w := range warnings {
			fmt.Fprintf(formatter.GetErrWriter(), "warning [%s]: %s\n", w.Code, w.Message)
		}
	}

	var encoded []byte
	if opts.YAML {
		encoded, err = sched.EncodeYAML()
	} else {
		encoded, err = sched.EncodeJSONIndent()
	}
	if err != nil {
		_ = formatter.Error("ENCODE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to encode schedule", err)
	}

	runID := ""
	if opts.Archive != "" {
		runID, err = archiveRun(opts.Archive, r.Protocol.Name(), path, sched)
		if err != nil {
			_ = formatter.Error("ARCHIVE", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to archive run", err)
		}
		formatter.VerboseLog("Archived run %s in %s", runID, opts.Archive)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, encoded, 0o644); err != nil {
			_ = formatter.Error("WRITE", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write schedule", err)
		}
	}

	if formatter.Format == "json" {
		compact, err := sched.EncodeJSON()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode schedule", err)
		}
		report := CompileReport{
			Protocol:   r.Protocol.Name(),
			Components: sched.Len(),
			DurationS:  sched.Duration(),
			RunID:      runID,
			Schedule:   json.RawMessage(compact),
		}
		for _, w := range warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", w.Code, w.Message))
		}
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %s: %d component(s), %g second(s)\n",
		r.Protocol.Name(), sched.Len(), sched.Duration())
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote schedule to %s\n", opts.Output)
	} else {
		fmt.Fprintln(formatter.Writer)
		formatter.Writer.Write(encoded)
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

func archiveRun(dbPath, name, rigPath string, sched *schedule.Schedule) (string, error) {
	arch, err := archive.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer arch.Close()
	return arch.Save(name, rigPath, sched)
}
