package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/archive"
)

// RunsOptions holds flags shared by the runs subcommands.
type RunsOptions struct {
	*RootOptions
	Archive string
}

// RunSummary is one row of `runs list` JSON output.
type RunSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	RigPath   string  `json:"rig_path,omitempty"`
	CreatedAt string  `json:"created_at"`
	DurationS float64 `json:"duration_s"`
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse the archive of compiled runs",
	}
	cmd.PersistentFlags().StringVar(&opts.Archive, "archive", "flowforge.db", "archive database path")

	cmd.AddCommand(newRunsListCommand(opts))
	cmd.AddCommand(newRunsShowCommand(opts))
	return cmd
}

func newRunsListCommand(opts *RunsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List archived runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(opts, cmd)
		},
	}
}

func newRunsShowCommand(opts *RunsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Print an archived run's schedule",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(opts, args[0], cmd)
		},
	}
}

func runRunsList(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	arch, err := openArchive(formatter, opts.Archive)
	if err != nil {
		return err
	}
	defer arch.Close()

	runs, err := arch.List()
	if err != nil {
		_ = formatter.Error("ARCHIVE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		summaries := make([]RunSummary, len(runs))
		for i, r := range runs {
			summaries[i] = RunSummary{
				ID:        r.ID,
				Name:      r.Name,
				RigPath:   r.RigPath,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
				DurationS: r.DurationS,
			}
		}
		return formatter.Success(summaries)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No archived runs.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s  %gs\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Name, r.DurationS)
	}
	return nil
}

func runRunsShow(opts *RunsOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	arch, err := openArchive(formatter, opts.Archive)
	if err != nil {
		return err
	}
	defer arch.Close()

	run, err := arch.Get(id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			_ = formatter.Error("NOT_FOUND", err.Error(), nil)
			return WrapExitError(ExitFailure, "run not found", err)
		}
		_ = formatter.Error("ARCHIVE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	encoded, err := run.Schedule.EncodeJSONIndent()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode schedule", err)
	}

	if formatter.Format == "json" {
		compact, err := run.Schedule.EncodeJSON()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode schedule", err)
		}
		return formatter.Success(struct {
			RunSummary
			Schedule json.RawMessage `json:"schedule"`
		}{
			RunSummary: RunSummary{
				ID:        run.ID,
				Name:      run.Name,
				RigPath:   run.RigPath,
				CreatedAt: run.CreatedAt.Format(time.RFC3339),
				DurationS: run.DurationS,
			},
			Schedule: json.RawMessage(compact),
		})
	}

	fmt.Fprintf(formatter.Writer, "%s  %s  %s\n\n", run.ID, run.CreatedAt.Format(time.RFC3339), run.Name)
	formatter.Writer.Write(encoded)
	fmt.Fprintln(formatter.Writer)
	return nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func openArchive(formatter *OutputFormatter, path string) (*archive.Archive, error) {
	arch, err := archive.Open(path)
	if err != nil {
		_ = formatter.Error("ARCHIVE", err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return arch, nil
}
