package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	coderlang "github.com/coderlang-ai/coderlang"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the coding workflow over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	cl, err := coderlang.New(ctx, func(o *coderlang.Options) {
		o.Config = cfg
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	defer cl.Close()

	srv := server.New(cl, func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.ReadTimeout = cfg.Server.ReadTimeout
		o.WriteTimeout = cfg.Server.WriteTimeout
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Logger = logging.NewLogger(&logging.LoggerConfig{Level: serveLogLevel(cfg.Log.Level), Format: "text", Component: "server"})
	})

	return srv.ListenAndServe(ctx)
}

func serveLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
