package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type resetStepView struct {
	Step    string `json:"step" yaml:"step"`
	Skipped bool   `json:"skipped" yaml:"skipped"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newResetNetworkCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-network",
		Short: "Reset proxy settings, Winsock and the DNS cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			progress := func(msg string) {
				if opts.output == outputText {
					fmt.Fprintln(out, msg)
				}
			}
			report := sess.app.ResetNetwork(cmd.Context(), progress)

			views := make([]resetStepView, 0, len(report.Steps))
			var failed []string
			for _, step := range report.Steps {
				view := resetStepView{Step: step.Name, Skipped: step.Skipped}
				if step.Err != nil {
					view.Error = step.Err.Error()
					failed = append(failed, step.Name)
				}
				views = append(views, view)
			}
			if handled, err := writeStructured(out, opts.output, map[string]any{"steps": views}); handled && err != nil {
				return err
			}
			if len(failed) > 0 {
				return exitWith(exitFailure, fmt.Sprintf("network reset steps failed: %s", strings.Join(failed, ", ")))
			}
			return nil
		},
	}
}
