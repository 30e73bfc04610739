// Package agent samples local resource usage and pushes it to the ingestion listener.
package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/receiver"
)

const (
	MetricCPU    = "CPU"
	MetricMemory = "MEMORY"
	MetricDisk   = "DISK"

	cpuSampleWindow = 200 * time.Millisecond
)

// ErrUnexpectedAck is returned when the listener answers with something other than the acknowledgment
var ErrUnexpectedAck = errors.New("unexpected acknowledgment")

// Sampler takes one reading per resource
type Sampler func(ctx context.Context) ([]receiver.Reading, error)

// SystemSampler reads cpu, memory and disk usage of the host. diskPath selects the filesystem.
func SystemSampler(diskPath string) Sampler {
	return func(ctx context.Context) ([]receiver.Reading, error) {
		cpuPercent, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read cpu usage: %w", err)
		}
		if len(cpuPercent) == 0 {
			return nil, errors.New("no cpu usage reported")
		}

		memInfo, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read memory usage: %w", err)
		}

		diskInfo, err := disk.UsageWithContext(ctx, diskPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read disk usage of %s: %w", diskPath, err)
		}

		return []receiver.Reading{
			{Type: MetricCPU, Value: cpuPercent[0]},
			{Type: MetricMemory, Value: memInfo.UsedPercent},
			{Type: MetricDisk, Value: diskInfo.UsedPercent},
		}, nil
	}
}

// WorstFirst orders readings by descending value so the listener decodes the highest one
func WorstFirst(readings []receiver.Reading) []receiver.Reading {
	sorted := make([]receiver.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	return sorted
}

// Send pushes one report to addr and waits for the acknowledgment
func Send(ctx context.Context, addr, agentID string, readings []receiver.Reading) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", receiver.EncodeReport(agentID, readings...)); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read acknowledgment: %w", err)
	}
	if reply = strings.TrimRight(reply, "\r\n"); reply != receiver.Ack {
		return fmt.Errorf("%w: %q", ErrUnexpectedAck, reply)
	}

	return nil
}

// Config holds the reporting loop settings
type Config struct {
	AgentID  string
	Addr     string
	Interval time.Duration
	Timeout  time.Duration
}

// Reporter samples and reports on an interval
type Reporter struct {
	cfg     Config
	sampler Sampler
	logger  *zap.Logger
}

// NewReporter creates a reporter. A nil logger disables logging.
func NewReporter(cfg Config, sampler Sampler, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Reporter{cfg: cfg, sampler: sampler, logger: logger}
}

// ReportOnce takes a sample and sends it, worst reading first
func (r *Reporter) ReportOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	readings, err := r.sampler(ctx)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return errors.New("sampler returned no readings")
	}
	readings = WorstFirst(readings)

	if err := Send(ctx, r.cfg.Addr, r.cfg.AgentID, readings); err != nil {
		return err
	}

	r.logger.Info("Report acknowledged",
		zap.String("agent_id", r.cfg.AgentID),
		zap.String("metric_type", readings[0].Type),
		zap.Float64("value", readings[0].Value))
	return nil
}

// Run reports immediately and then every interval until ctx is done. A zero interval reports once.
func (r *Reporter) Run(ctx context.Context) error {
	if err := r.ReportOnce(ctx); err != nil {
		if r.cfg.Interval <= 0 {
			return err
		}
		r.logger.Warn("Report failed", zap.Error(err))
	}
	if r.cfg.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.ReportOnce(ctx); err != nil {
				r.logger.Warn("Report failed", zap.Error(err))
			}
		}
	}
}
