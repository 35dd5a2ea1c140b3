package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	coderlang "github.com/coderlang-ai/coderlang"
)

var (
	askSession string
	askVerbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Run a single request through the coding workflow",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "session ID to continue (default: a fresh session)")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "print workflow logs and evaluation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cl, err := coderlang.New(ctx, func(o *coderlang.Options) {
		o.Config = cfg
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	defer cl.Close()

	sessionID := askSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	summary, err := cl.Ask(ctx, sessionID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Println(summary.PrimaryText())

	if summary.Tests != "" {
		fmt.Printf("\n--- Tests ---\n%s\n", summary.Tests)
	}

	if askVerbose {
		if summary.Evaluation != "" {
			fmt.Printf("\n--- Evaluation ---\n%s\n", summary.Evaluation)
		}

		fmt.Printf("\nIntent: %s\nLatency: %s\nSession: %s\n", summary.Intent, summary.Latency, sessionID)

		for _, line := range summary.Logs {
			fmt.Println(line)
		}
	}

	return nil
}
