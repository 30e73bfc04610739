package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/agent"
	"github.com/internet-measurement-network/monitoring/internal/logging"
)

var (
	agentID  string
	addr     string
	diskPath string
	interval time.Duration
	timeout  time.Duration
	logLevel string
	rootCmd  = &cobra.Command{
		Use:          "agent",
		Short:        "Report local cpu, memory and disk usage to the monitoring server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	hostname, _ := os.Hostname()

	rootCmd.Flags().StringVarP(&agentID, "id", "i", hostname, "Agent identifier")
	rootCmd.Flags().StringVarP(&addr, "server", "s", "localhost:9877", "Ingestion listener address")
	rootCmd.Flags().StringVar(&diskPath, "disk", "/", "Filesystem whose usage is reported")
	rootCmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Reporting interval, 0 reports once")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout of a single report")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if agentID == "" {
		return errors.New("an agent id is required")
	}

	logger, err := logging.New(logging.Options{Level: logLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Agent started",
		zap.String("agent_id", agentID),
		zap.String("server", addr),
		zap.Duration("interval", interval))

	reporter := agent.NewReporter(agent.Config{
		AgentID:  agentID,
		Addr:     addr,
		Interval: interval,
		Timeout:  timeout,
	}, agent.SystemSampler(diskPath), logger)

	return reporter.Run(ctx)
}
