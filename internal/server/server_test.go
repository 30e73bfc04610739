package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/internet-measurement-network/monitoring/api"
	"github.com/internet-measurement-network/monitoring/internal/models"
	"github.com/internet-measurement-network/monitoring/internal/query"
	"github.com/internet-measurement-network/monitoring/internal/store"
)

type fixture struct {
	agents *store.AgentStore
	alerts *store.AlertStore
	server *Server
	conn   *grpc.ClientConn
	client api.MonitoringServiceClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	agents := store.NewAgentStore(store.DefaultHistorySize)
	alerts := store.NewAlertStore(0)
	srv := NewServer(query.New(agents, alerts), WithLogger(zaptest.NewLogger(t)))

	lis := bufconn.Listen(1024 * 1024)
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := srv.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		<-served
	})

	return &fixture{
		agents: agents,
		alerts: alerts,
		server: srv,
		conn:   conn,
		client: api.NewMonitoringServiceClient(conn),
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	for _, id := range []string{"A", "B", "C"} {
		f.agents.Update(models.NewMetricsSample(id, 1, 2, 3), "10.0.0.1")
	}
	f.alerts.Append(models.NewAlert("A", "cpu", models.SeverityCritical))
	f.alerts.Append(models.NewAlert("B", "disk", models.SeverityLow))

	resp, err := f.client.Ping(ctx, &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Monitoring service up - 3 agent(s) - 2 alert(s)", resp.Status)

	agentCount, err := f.client.AgentCount(ctx, &api.AgentCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), agentCount.Count)

	alertCount, err := f.client.AlertCount(ctx, &api.AlertCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), alertCount.Count)
}

func TestListAgentsAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	taken := time.UnixMilli(1700000000123)
	first := models.MetricsSample{AgentID: "AGENT-1", CPUUsage: 45.2, MemoryUsage: 67.8, DiskUsage: 55.3, TakenAt: taken}
	second := models.MetricsSample{AgentID: "AGENT-1", CPUUsage: 50, MemoryUsage: 60, DiskUsage: 70, TakenAt: taken.Add(time.Second)}
	f.agents.Update(first, "192.168.1.101")
	f.agents.Update(second, "192.168.1.101")

	list, err := f.client.ListAgents(ctx, &api.ListAgentsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Agents, 1)
	agent := list.Agents[0]
	assert.Equal(t, "AGENT-1", agent.AgentId)
	assert.Equal(t, "192.168.1.101", agent.OriginAddress)
	assert.Equal(t, "ONLINE", agent.Status)
	require.NotNil(t, agent.LatestSample)
	assert.Equal(t, 50.0, agent.LatestSample.CpuUsage)
	assert.NotZero(t, agent.LastUpdatedAt)

	history, err := f.client.GetMetricsHistory(ctx, &api.GetMetricsHistoryRequest{AgentId: "AGENT-1"})
	require.NoError(t, err)
	require.Len(t, history.Samples, 2)
	assert.Equal(t, &api.MetricsSample{
		AgentId:     "AGENT-1",
		CpuUsage:    45.2,
		MemoryUsage: 67.8,
		DiskUsage:   55.3,
		TakenAt:     1700000000123,
	}, history.Samples[0])
}

func TestGetAgent(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	f.agents.Update(models.NewMetricsSample("A", 1, 2, 3), "10.0.0.1")

	resp, err := f.client.GetAgent(ctx, &api.GetAgentRequest{AgentId: "A"})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Agent)
	assert.Equal(t, "A", resp.Agent.AgentId)
}

func TestUnknownAgentIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	resp, err := f.client.GetAgent(ctx, &api.GetAgentRequest{AgentId: "UNKNOWN"})
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Nil(t, resp.Agent)

	history, err := f.client.GetMetricsHistory(ctx, &api.GetMetricsHistoryRequest{AgentId: "UNKNOWN"})
	require.NoError(t, err)
	assert.Empty(t, history.Samples)
}

func TestListAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	f.alerts.Append(models.NewAlert("A", "[CPU] threshold exceeded: 96%", models.SeverityCritical))
	f.alerts.Append(models.NewAlert("B", "[DISK] threshold exceeded: 81%", models.SeverityMedium))

	resp, err := f.client.ListAlerts(ctx, &api.ListAlertsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Alerts, 2)
	assert.Equal(t, "A", resp.Alerts[0].AgentId)
	assert.Equal(t, "CRITICAL", resp.Alerts[0].Severity)
	assert.Equal(t, "[CPU] threshold exceeded: 96%", resp.Alerts[0].Message)
	assert.Equal(t, "MEDIUM", resp.Alerts[1].Severity)
	assert.NotZero(t, resp.Alerts[1].RaisedAt)
}

func TestServicePublishedInHealth(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	health := healthpb.NewHealthClient(f.conn)

	require.Eventually(t, func() bool {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: DefaultServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestUnpublishKeepsServing(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	health := healthpb.NewHealthClient(f.conn)

	require.Eventually(t, func() bool {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: DefaultServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	f.server.Unpublish()
	f.server.Unpublish()

	for _, name := range []string{DefaultServiceName, api.ServiceName} {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status, name)
	}

	resp, err := f.client.Ping(ctx, &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Monitoring service up - 0 agent(s) - 0 alert(s)", resp.Status)
}
