package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/app"
	"github.com/dera1992/new-aggregator-app/internal/config"
	"github.com/dera1992/new-aggregator-app/internal/logging"
)

// newRunCmd creates the 'run' subcommand, which starts the pipeline
// scheduler and the operational HTTP server and blocks until SIGINT or
// SIGTERM.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the aggregation pipeline",
		Long: `Starts the stage scheduler, which fires the harvest, summarize,
cluster, and digest stages on their configured intervals, together with
the health and metrics HTTP server. The process runs until it receives
SIGINT or SIGTERM, then drains in-flight stages and shuts down.`,

		RunE: runRunCommand,
	}
	return cmd
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	logger.Info("aggregator stopped", zap.String("reason", "signal received"))
	return nil
}
