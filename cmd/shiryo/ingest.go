package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiryo/internal/cli"
	"github.com/hyperjump/shiryo/internal/lifecycle"
)

func newIngestCmd(flags *rootFlags) *cobra.Command {
	var (
		about  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "ingest <index> <path>...",
		Short: "Add files or directories to an index, creating it if needed",
		Long: `Ingest extracts text from the given files (PDF, DOCX, XLSX, TXT, MD) and
directories, then adds every file not already in the index. Files are
identified by name: a file whose name the index already lists is skipped.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			c, done, err := setup(flags, modeFull)
			if err != nil {
				return err
			}
			defer done()

			ctx := context.Background()
			files, err := c.Loader.Load(ctx, args[1:])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported files found in %v", args[1:])
			}
			var opts []lifecycle.IngestOption
			if about != "" {
				opts = append(opts, lifecycle.WithAbout(about))
			}
			res, err := c.Manager.Ingest(ctx, args[0], files, opts...)
			if err != nil {
				return err
			}
			return cli.WriteIngestResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVar(&about, "about", "", "description stored when the index is created")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
