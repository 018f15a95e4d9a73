package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Kill every worker process and clear scratch profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.app.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped all %s processes\n", sess.cfg.WorkerName)
			return nil
		},
	}
}
