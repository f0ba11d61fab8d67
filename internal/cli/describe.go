package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DescribeReport is the JSON payload of the describe command.
type DescribeReport struct {
	Apparatus   string `json:"apparatus"`
	Description string `json:"description"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "describe <rig.cue>",
		Short:         "Render a rig definition as plain language",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(rootOpts, args[0], cmd)
		},
	}
}

func runDescribe(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	if formatter.Format == "json" {
		return formatter.Success(DescribeReport{
			Apparatus:   r.Apparatus.Name(),
			Description: r.Apparatus.Describe(),
		})
	}

	fmt.Fprintln(formatter.Writer, r.Apparatus.Describe())
	return nil
}
