// Package app assembles the monitoring server from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/config"
	"github.com/internet-measurement-network/monitoring/internal/query"
	"github.com/internet-measurement-network/monitoring/internal/receiver"
	"github.com/internet-measurement-network/monitoring/internal/server"
	"github.com/internet-measurement-network/monitoring/internal/store"
	"github.com/internet-measurement-network/monitoring/internal/telemetry"
	"github.com/internet-measurement-network/monitoring/pkg/redis"
)

const redisPingTimeout = 2 * time.Second

// App is a running monitoring server
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	agents *store.AgentStore
	alerts *store.AlertStore
	facade *query.Facade

	listener *receiver.Listener
	server   *server.Server
	queryLis net.Listener
	journal  *redis.Client

	metrics        *telemetry.Metrics
	shutdownTracer telemetry.ShutdownFunc

	serveErr chan error
}

// New builds the stores and binds both ports. Nothing is served until Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := store.ParseStatusPolicy(cfg.Store.StatusPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		agents:   store.NewAgentStore(cfg.Store.HistorySize, store.WithStatusPolicy(policy)),
		alerts:   store.NewAlertStore(cfg.Store.MaxAlerts),
		serveErr: make(chan error, 1),
	}
	a.facade = query.New(a.agents, a.alerts)

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
		Enabled:     cfg.Telemetry.TracingEnabled,
		Endpoint:    cfg.Telemetry.TracingEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Query.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	a.shutdownTracer = shutdownTracer

	metrics, err := telemetry.NewMetrics(ctx, telemetry.MetricsConfig{
		Exporter:    telemetry.ExporterType(cfg.Telemetry.MetricsExporter),
		Endpoint:    cfg.Telemetry.MetricsEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Query.ServiceName,
	})
	if err != nil {
		a.release(ctx)
		return nil, err
	}
	a.metrics = metrics

	opts := []receiver.Option{
		receiver.WithLogger(logger.Named("receiver")),
		receiver.WithMetrics(metrics),
	}
	if cfg.Redis.Enabled {
		a.journal = a.connectJournal(ctx)
		if a.journal != nil {
			opts = append(opts, receiver.WithJournal(a.journal))
		}
	}

	queryLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Query.Port))
	if err != nil {
		a.release(ctx)
		return nil, fmt.Errorf("failed to listen on query port %d: %w", cfg.Query.Port, err)
	}
	a.queryLis = queryLis

	listener, err := receiver.Start(receiver.Config{
		Port:           cfg.Ingest.Port,
		MaxConnections: cfg.Ingest.MaxConnections,
		ReadTimeout:    cfg.Ingest.ReadTimeout,
		WriteTimeout:   cfg.Ingest.WriteTimeout,
	}, a.agents, a.alerts, opts...)
	if err != nil {
		queryLis.Close()
		a.release(ctx)
		return nil, err
	}
	a.listener = listener

	a.server = server.NewServer(a.facade,
		server.WithLogger(logger.Named("query")),
		server.WithServiceName(cfg.Query.ServiceName))

	return a, nil
}

// connectJournal returns nil when Redis cannot be reached, so ingestion runs without a journal
func (a *App) connectJournal(ctx context.Context) *redis.Client {
	client := redis.NewClient(a.cfg.Redis.Addr, redis.WithLogger(a.logger.Named("journal")))

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		a.logger.Warn("Redis unreachable, alert journal disabled",
			zap.String("addr", a.cfg.Redis.Addr), zap.Error(err))
		client.Close()
		return nil
	}

	a.logger.Info("Alert journal enabled", zap.String("addr", a.cfg.Redis.Addr))
	return client
}

// IngestAddr returns the bound ingestion address
func (a *App) IngestAddr() net.Addr {
	return a.listener.Addr()
}

// QueryAddr returns the bound query address
func (a *App) QueryAddr() net.Addr {
	return a.queryLis.Addr()
}

// Facade returns the read interface over the stores
func (a *App) Facade() *query.Facade {
	return a.facade
}

// Run serves queries and prints a status line every status interval until ctx is done,
// then shuts everything down within the configured grace period.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.serveErr <- a.server.Serve(a.queryLis)
	}()

	var tick <-chan time.Time
	if a.cfg.StatusInterval > 0 {
		ticker := time.NewTicker(a.cfg.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-a.serveErr:
			if err != nil {
				runErr = fmt.Errorf("query service failed: %w", err)
			}
			break loop
		case <-tick:
			a.logStatus()
		}
	}

	return errors.Join(runErr, a.shutdown())
}

// StatusLine summarizes the listener state and the current agent and alert counts
func (a *App) StatusLine() string {
	state := "stopped"
	if a.listener.Running() {
		state = "running"
	}
	return fmt.Sprintf("[Status] Listener: %s | Agents: %d | Alerts: %d",
		state, a.facade.AgentCount(), a.facade.AlertCount())
}

func (a *App) logStatus() {
	a.logger.Info(a.StatusLine(),
		zap.Bool("listener_running", a.listener.Running()),
		zap.Int("agents", a.facade.AgentCount()),
		zap.Int("alerts", a.facade.AlertCount()))
}

// shutdown marks the query service NOT_SERVING first, then gives the listener and the
// query service one grace period each
func (a *App) shutdown() error {
	a.logger.Info("Shutting down", zap.Duration("grace", a.cfg.ShutdownGrace))
	a.server.Unpublish()

	var errs []error
	listenerCtx, listenerCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer listenerCancel()
	if err := a.listener.Stop(listenerCtx); err != nil {
		errs = append(errs, err)
	}

	serverCtx, serverCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer serverCancel()
	a.server.Shutdown(serverCtx)

	// Exporters flush on a separate deadline
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	errs = append(errs, a.release(flushCtx))

	a.logger.Info(a.StatusLine())
	return errors.Join(errs...)
}

// release stops the journal and the telemetry providers
func (a *App) release(ctx context.Context) error {
	var errs []error
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down metrics: %w", err))
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
