package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiryo/internal/cli"
	"github.com/hyperjump/shiryo/internal/models"
)

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var (
		k      int
		rerank bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "query <index> <text>...",
		Short: "Show the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(2),
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

			resp, err := c.Retrieval.Query(context.Background(), models.Query{
				Index:  args[0],
				Text:   cli.JoinArgs(args[1:]),
				K:      k,
				Rerank: rerank,
			})
			if err != nil {
				return err
			}
			return cli.WriteQueryResponse(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of chunks (default from config)")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "re-rank candidates with keyword scores")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var (
		k           int
		interactive bool
		output      string
	)
	cmd := &cobra.Command{
		Use:   "ask <index> [question]...",
		Short: "Answer a question from an index",
		Long: `Ask retrieves the chunks most similar to the question and answers from them.
With --interactive, questions are read line by line from stdin and earlier
turns are sent along as conversation history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			question := cli.JoinArgs(args[1:])
			if question == "" && !interactive {
				return fmt.Errorf("a question is required unless --interactive is set")
			}
			c, done, err := setup(flags, modeFull)
			if err != nil {
				return err
			}
			defer done()

			ctx := context.Background()
			out := cmd.OutOrStdout()
			var history []models.Turn
			ask := func(q string) error {
				resp, err := c.Retrieval.Ask(ctx, models.AskRequest{Index: args[0], Question: q, K: k, History: history})
				if err != nil {
					return err
				}
				history = append(history, models.Turn{Question: q, Answer: resp.Answer})
				return cli.WriteAnswer(out, resp, format)
			}
			if question != "" {
				if err := ask(question); err != nil {
					return err
				}
			}
			if !interactive {
				return nil
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				q := strings.TrimSpace(scanner.Text())
				if q == "" {
					continue
				}
				if err := ask(q); err != nil {
					cli.Err(cmd.ErrOrStderr(), err.Error())
				}
			}
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of chunks (default from config)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "keep asking questions read from stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
