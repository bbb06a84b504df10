package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiryo/internal/cli"
)

func newRecoverCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Clean up after an interrupted ingest or delete",
		Long: `Recover purges staging and trash directories left by an interrupted process
and restores an index moved aside by an unfinished commit. It waits for
ingests and deletes in progress, including those of a running server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, done, err := setup(flags, modeInspect)
			if err != nil {
				return err
			}
			defer done()

			report, err := c.Manager.Recover(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Purged)+len(report.Restored) == 0 {
				cli.OK(out, "nothing to recover")
				return nil
			}
			for _, p := range report.Restored {
				cli.OK(out, fmt.Sprintf("restored %s", p))
			}
			for _, p := range report.Purged {
				cli.OK(out, fmt.Sprintf("purged %s", p))
			}
			return nil
		},
	}
}
