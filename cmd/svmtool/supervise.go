package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"text2phenotype.com/svm/logger"
)

func newSuperviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise -- <executable> [args...]",
		Short: "Run a process, forward its JSON logs and report panics as log events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := logger.Supervise(cmd.OutOrStdout(), args[0], args[1:]...); code != 0 {
				return fmt.Errorf("%s exited with code %d", args[0], code)
			}
			return nil
		},
	}
}
