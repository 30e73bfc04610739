package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/internet-measurement-network/monitoring/api"
	"github.com/internet-measurement-network/monitoring/pkg/redis"
)

var (
	serverAddress string
	timeout       time.Duration
	redisAddr     string
	limit         int64
	rootCmd       = &cobra.Command{Use: "client", Short: "Query the monitoring server", SilenceUsage: true}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "localhost:1099", "gRPC query address")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Per-call timeout")
	journalCmd.Flags().StringVar(&redisAddr, "redis", "localhost:6379", "Redis journal address")
	journalCmd.Flags().Int64VarP(&limit, "limit", "n", 20, "Number of alerts to show")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getClient(cmd *cobra.Command) (context.Context, context.CancelFunc, api.MonitoringServiceClient, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(serverAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to %s: %w", serverAddress, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return ctx, cancel, api.NewMonitoringServiceClient(conn), conn, nil
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the service and print agent and alert counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, client, conn, err := getClient(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer cancel()

		resp, err := client.Ping(ctx, &api.PingRequest{})
		if err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		agents, err := client.AgentCount(ctx, &api.AgentCountRequest{})
		if err != nil {
			return fmt.Errorf("agent count failed: %w", err)
		}
		alerts, err := client.AlertCount(ctx, &api.AlertCountRequest{})
		if err != nil {
			return fmt.Errorf("alert count failed: %w", err)
		}

		fmt.Println(resp.Status)
		fmt.Printf("agents=%d alerts=%d\n", agents.Count, alerts.Count)
		return nil
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List known agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, client, conn, err := getClient(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer cancel()

		resp, err := client.ListAgents(ctx, &api.ListAgentsRequest{})
		if err != nil {
			return fmt.Errorf("list agents failed: %w", err)
		}

		fmt.Printf("%d agent(s)\n", len(resp.Agents))
		for _, a := range resp.Agents {
			fmt.Printf("  %s\n", formatAgent(a))
		}
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List stored alerts in arrival order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, client, conn, err := getClient(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer cancel()

		resp, err := client.ListAlerts(ctx, &api.ListAlertsRequest{})
		if err != nil {
			return fmt.Errorf("list alerts failed: %w", err)
		}

		fmt.Printf("%d alert(s)\n", len(resp.Alerts))
		for _, a := range resp.Alerts {
			fmt.Printf("  %s %-8s %s %s\n", formatMillis(a.RaisedAt), a.Severity, a.AgentId, a.Message)
		}
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent [agent-id]",
	Short: "Show an agent and its recent samples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, client, conn, err := getClient(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer cancel()

		resp, err := client.GetAgent(ctx, &api.GetAgentRequest{AgentId: args[0]})
		if err != nil {
			return fmt.Errorf("get agent failed: %w", err)
		}
		if !resp.Found {
			fmt.Printf("agent %s not found\n", args[0])
			return nil
		}
		fmt.Println(formatAgent(resp.Agent))

		history, err := client.GetMetricsHistory(ctx, &api.GetMetricsHistoryRequest{AgentId: args[0]})
		if err != nil {
			return fmt.Errorf("get history failed: %w", err)
		}
		fmt.Printf("%d sample(s)\n", len(history.Samples))
		for _, s := range history.Samples {
			fmt.Printf("  %s\n", formatSample(s))
		}
		return nil
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal [agent-id]",
	Short: "Show the alerts journaled in Redis for an agent, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := redis.NewClient(redisAddr)
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		records, err := client.RecentAlerts(ctx, args[0], limit)
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}

		fmt.Printf("%d journaled alert(s)\n", len(records))
		for _, r := range records {
			fmt.Printf("  %s %-8s %s\n", formatMillis(r.RaisedAt), r.Severity, r.Message)
		}
		return nil
	},
}

func formatAgent(a *api.Agent) string {
	return fmt.Sprintf("%s %s from %s updated %s [%s]",
		a.AgentId, a.Status, a.OriginAddress, formatMillis(a.LastUpdatedAt), formatSample(a.LatestSample))
}

func formatSample(s *api.MetricsSample) string {
	if s == nil {
		return "no sample"
	}
	return fmt.Sprintf("%s cpu=%.1f%% mem=%.1f%% disk=%.1f%%",
		formatMillis(s.TakenAt), s.CpuUsage, s.MemoryUsage, s.DiskUsage)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
