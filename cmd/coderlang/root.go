package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/coderlang-ai/coderlang/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coderlang",
	Short: "Multi-agent coding assistant",
	Long: `CoderLang routes coding requests through a staged multi-agent workflow:
a router plans the run, worker agents generate research, code, tests and
documentation in parallel, and an evaluator scores the result.

Run "coderlang ask" for a one-shot request or "coderlang serve" to expose
the workflow over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default coderlang.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
