package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/observables/internal/presentation"
	"github.com/zjrosen/observables/internal/script"
)

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Replay a script of container operations",
	Long: `Replay a YAML script against a fresh container and print which
subscribers were notified at each step.

Example script:
  name: counter
  initial: {count: 0}
  steps:
    - op: subscribe
      key: c
      deps: [count]
    - op: next
      value: {count: 1}
    - op: reset

Ops: subscribe, unsubscribe, next, overwrite, reset, dispose,
pipe_subscribe, pipe_reset. Set expect_error: true on a step whose value
should be rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().Bool("no-diff", false, "do not show state diffs after mutating steps")
	runCmd.Flags().Bool("json", false, "print the report as JSON")
	runCmd.Flags().Int("width", 0, "truncate report lines to this many columns (0: no limit)")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	s, err := script.Load(args[0])
	if err != nil {
		return err
	}

	report, runErr := script.Run(cmd.Context(), s,
		script.WithTracer(provider.Tracer()),
		script.WithBufferSize(cfg.Container.BufferSize),
	)
	if report == nil {
		return runErr
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := presentation.NewFormatter(cmd.OutOrStdout()).FormatReport(presentation.FromReport(report, runErr)); err != nil {
			return err
		}
		return runErr
	}

	noDiff, _ := cmd.Flags().GetBool("no-diff")
	width, _ := cmd.Flags().GetInt("width")
	if err := report.Write(cmd.OutOrStdout(), script.WriteOptions{
		Diff:     !noDiff,
		MaxWidth: width,
		Styles:   reportStyles(),
	}); err != nil {
		return err
	}
	return runErr
}
