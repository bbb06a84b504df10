package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiryo/internal/cli"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			c, done, err := setup(flags, modeInspect)
			if err != nil {
				return err
			}
			defer done()

			list, err := c.Manager.List()
			if err != nil {
				return err
			}
			return cli.WriteIndexList(cmd.OutOrStdout(), list, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Describe an index: files, chunk count, disk usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			c, done, err := setup(flags, modeInspect)
			if err != nil {
				return err
			}
			defer done()

			info, err := c.Manager.Describe(context.Background(), args[0])
			if err != nil {
				return err
			}
			return cli.WriteIndexInfo(cmd.OutOrStdout(), info, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <index>",
		Short: "Check that an index has both its manifest and its vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := setup(flags, modeInspect)
			if err != nil {
				return err
			}
			defer done()

			ok, err := c.Manager.IsConsistent(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				cli.Err(cmd.OutOrStdout(), fmt.Sprintf("[%s] inconsistent", args[0]))
				return fmt.Errorf("index %q is inconsistent", args[0])
			}
			cli.OK(cmd.OutOrStdout(), fmt.Sprintf("[%s] consistent", args[0]))
			return nil
		},
	}
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <index>",
		Aliases: []string{"rm"},
		Short:   "Delete an index",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := setup(flags, modeInspect)
			if err != nil {
				return err
			}
			defer done()

			if err := c.Manager.DeleteIndex(context.Background(), args[0]); err != nil {
				return err
			}
			cli.OK(cmd.OutOrStdout(), fmt.Sprintf("[%s] deleted", args[0]))
			return nil
		},
	}
}
