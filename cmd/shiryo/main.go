// Package main is the shiryo CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hyperjump/shiryo/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiryo/config.yaml"

type rootFlags struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "shiryo",
		Short:        "Question answering over your PDFs",
		SilenceUsage: true,
		Long: `shiryo splits documents into chunks, embeds them into named indices
and answers questions from the most similar chunks.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// OPENAI_API_KEY and friends may live in ./.env
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(flags),
		newIngestCmd(flags),
		newQueryCmd(flags),
		newAskCmd(flags),
		newListCmd(flags),
		newShowCmd(flags),
		newCheckCmd(flags),
		newDeleteCmd(flags),
		newRecoverCmd(flags),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins (for development); when neither exists the
// built-in defaults are used. It returns the path actually loaded, or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
