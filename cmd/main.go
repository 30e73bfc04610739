package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/app"
	"github.com/internet-measurement-network/monitoring/internal/config"
	"github.com/internet-measurement-network/monitoring/internal/logging"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:          "monitor",
		Short:        "Agent health monitoring server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (MONITOR_* variables override it)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start monitoring server", zap.Error(err))
		return err
	}

	logger.Info("Monitoring server started",
		zap.String("ingest_addr", a.IngestAddr().String()),
		zap.String("query_addr", a.QueryAddr().String()),
		zap.String("service_name", cfg.Query.ServiceName))

	if err := a.Run(ctx); err != nil {
		logger.Error("Monitoring server stopped with errors", zap.Error(err))
		return err
	}

	logger.Info("Monitoring server stopped")
	return nil
}
