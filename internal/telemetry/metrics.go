package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// ExporterType selects where ingestion metrics are exported
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
)

// MetricsConfig controls the metrics exporter
type MetricsConfig struct {
	Exporter    ExporterType
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// Metrics records ingestion counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	reports     metric.Int64Counter
	alerts      metric.Int64Counter
	rejected    metric.Int64Counter
	connections metric.Int64UpDownCounter
}

// NewMetrics builds a meter provider for the configured exporter.
// ExporterNone yields a provider without readers, so nothing leaves the process.
func NewMetrics(ctx context.Context, cfg MetricsConfig) (*Metrics, error) {
	var opts []sdkmetric.Option

	switch cfg.Exporter {
	case ExporterNone, "":
	case ExporterStdout:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	case ExporterOTLPGRPC:
		grpcOpts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	default:
		return nil, fmt.Errorf("unknown metrics exporter: %s", cfg.Exporter)
	}

	res, err := newResource(ctx, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sdkmetric.WithResource(res))

	return newMetrics(sdkmetric.NewMeterProvider(opts...), cfg.ServiceName)
}

func newMetrics(provider *sdkmetric.MeterProvider, name string) (*Metrics, error) {
	meter := provider.Meter(name)
	m := &Metrics{provider: provider}

	var err error
	m.reports, err = meter.Int64Counter(
		"monitoring.ingest.reports",
		metric.WithDescription("Reports accepted by the ingestion listener"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reports counter: %w", err)
	}

	m.alerts, err = meter.Int64Counter(
		"monitoring.alerts",
		metric.WithDescription("Alerts raised by severity"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alerts counter: %w", err)
	}

	m.rejected, err = meter.Int64Counter(
		"monitoring.ingest.rejected",
		metric.WithDescription("Reports rejected by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}

	m.connections, err = meter.Int64UpDownCounter(
		"monitoring.ingest.connections",
		metric.WithDescription("Ingestion connections currently being handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connections counter: %w", err)
	}

	return m, nil
}

// RecordAlert counts an accepted report and the alert it raised
func (m *Metrics) RecordAlert(ctx context.Context, metricType string, severity models.Severity) {
	if m == nil {
		return
	}
	m.reports.Add(ctx, 1, metric.WithAttributes(attribute.String("metric_type", metricType)))
	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", string(severity))))
}

// RecordRejected counts a report that could not be parsed
func (m *Metrics) RecordRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// ConnectionOpened tracks a connection entering its handler
func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
}

// ConnectionClosed tracks a connection leaving its handler
func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, -1)
}

// Shutdown flushes pending metrics
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
