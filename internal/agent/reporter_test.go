package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/internet-measurement-network/monitoring/internal/models"
	"github.com/internet-measurement-network/monitoring/internal/receiver"
	"github.com/internet-measurement-network/monitoring/internal/store"
)

func startReceiver(t *testing.T) (string, *store.AgentStore, *store.AlertStore) {
	t.Helper()

	registry := store.NewAgentStore(store.DefaultHistorySize)
	alerts := store.NewAlertStore(0)
	l, err := receiver.Start(receiver.Config{}, registry, alerts, receiver.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Stop(ctx)
	})

	return fmt.Sprintf("127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port), registry, alerts
}

func fixedSampler(readings ...receiver.Reading) Sampler {
	return func(context.Context) ([]receiver.Reading, error) {
		return readings, nil
	}
}

func TestWorstFirst(t *testing.T) {
	in := []receiver.Reading{
		{Type: MetricCPU, Value: 12},
		{Type: MetricMemory, Value: 91},
		{Type: MetricDisk, Value: 40},
	}

	out := WorstFirst(in)
	assert.Equal(t, []string{MetricMemory, MetricDisk, MetricCPU}, []string{out[0].Type, out[1].Type, out[2].Type})
	// The input is left untouched
	assert.Equal(t, MetricCPU, in[0].Type)
}

func TestReportOnce(t *testing.T) {
	addr, registry, alerts := startReceiver(t)

	r := NewReporter(Config{AgentID: "AGENT-7", Addr: addr}, fixedSampler(
		receiver.Reading{Type: MetricCPU, Value: 20},
		receiver.Reading{Type: MetricDisk, Value: 96.4},
		receiver.Reading{Type: MetricMemory, Value: 50},
	), zaptest.NewLogger(t))

	require.NoError(t, r.ReportOnce(context.Background()))

	stored := alerts.List()
	require.Len(t, stored, 1)
	assert.Equal(t, "AGENT-7", stored[0].AgentID)
	assert.Equal(t, models.SeverityCritical, stored[0].Severity)
	assert.Contains(t, stored[0].Message, MetricDisk)

	agent, ok := registry.Get("AGENT-7")
	require.True(t, ok)
	assert.Equal(t, 96.4, agent.LatestSample.DiskUsage)
}

func TestReportOnceSamplerError(t *testing.T) {
	addr, _, alerts := startReceiver(t)
	failing := func(context.Context) ([]receiver.Reading, error) {
		return nil, errors.New("no procfs")
	}

	r := NewReporter(Config{AgentID: "A", Addr: addr}, failing, nil)
	assert.Error(t, r.ReportOnce(context.Background()))
	assert.Equal(t, 0, alerts.Count())

	r = NewReporter(Config{AgentID: "A", Addr: addr}, fixedSampler(), nil)
	assert.Error(t, r.ReportOnce(context.Background()))
}

func TestSendUnexpectedAck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		_, _ = io.WriteString(conn, "NOPE\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = Send(ctx, ln.Addr().String(), "A", []receiver.Reading{{Type: MetricCPU, Value: 1}})
	assert.ErrorIs(t, err, ErrUnexpectedAck)
}

func TestRunOnceWithoutInterval(t *testing.T) {
	addr, _, alerts := startReceiver(t)

	r := NewReporter(Config{AgentID: "A", Addr: addr}, fixedSampler(receiver.Reading{Type: MetricCPU, Value: 10}), nil)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, alerts.Count())
}

func TestRunStopsWithContext(t *testing.T) {
	addr, _, alerts := startReceiver(t)

	r := NewReporter(Config{AgentID: "A", Addr: addr, Interval: 20 * time.Millisecond},
		fixedSampler(receiver.Reading{Type: MetricCPU, Value: 10}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return alerts.Count() >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
