package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/internet-measurement-network/monitoring/api"
	"github.com/internet-measurement-network/monitoring/internal/models"
	"github.com/internet-measurement-network/monitoring/internal/query"
)

// DefaultServiceName is the name the query service is published under
const DefaultServiceName = "MonitoringService"

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceName overrides the published service name
func WithServiceName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.serviceName = name
		}
	}
}

// Server implements the monitoring gRPC service on top of the query facade
type Server struct {
	api.UnimplementedMonitoringServiceServer
	facade      *query.Facade
	logger      *zap.Logger
	serviceName string
	health      *health.Server
	grpcServer  *grpc.Server
	unpublish   sync.Once
}

// NewServer creates a gRPC server exposing facade, traced with OpenTelemetry
func NewServer(facade *query.Facade, opts ...Option) *Server {
	s := &Server{
		facade:      facade,
		logger:      zap.NewNop(),
		serviceName: DefaultServiceName,
		health:      health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(loggingInterceptor(s.logger)),
	)

	api.RegisterMonitoringServiceServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	return s
}

// Serve publishes the service as SERVING and serves lis until shut down
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus(s.serviceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	s.logger.Info("Query service published",
		zap.String("name", s.serviceName),
		zap.String("addr", lis.Addr().String()))

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Unpublish marks every service NOT_SERVING while in-flight and new RPCs are still served.
// Later SERVING updates are ignored.
func (s *Server) Unpublish() {
	s.unpublish.Do(func() {
		s.health.Shutdown()
		s.logger.Info("Query service unpublished", zap.String("name", s.serviceName))
	})
}

// Shutdown unpublishes the service and stops gracefully, forcing a stop when ctx expires
func (s *Server) Shutdown(ctx context.Context) {
	s.Unpublish()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

// ListAgents retrieves all agents
func (s *Server) ListAgents(ctx context.Context, req *api.ListAgentsRequest) (*api.ListAgentsResponse, error) {
	agents := s.facade.ListAgents()

	apiAgents := make([]*api.Agent, len(agents))
	for i, agent := range agents {
		apiAgents[i] = toAPIAgent(agent)
	}

	return &api.ListAgentsResponse{
		Agents: apiAgents,
	}, nil
}

// ListAlerts retrieves all alerts in insertion order
func (s *Server) ListAlerts(ctx context.Context, req *api.ListAlertsRequest) (*api.ListAlertsResponse, error) {
	alerts := s.facade.ListAlerts()

	apiAlerts := make([]*api.Alert, len(alerts))
	for i, alert := range alerts {
		apiAlerts[i] = &api.Alert{
			AgentId:  alert.AgentID,
			Message:  alert.Message,
			RaisedAt: alert.RaisedAt.UnixMilli(),
			Severity: string(alert.Severity),
		}
	}

	return &api.ListAlertsResponse{
		Alerts: apiAlerts,
	}, nil
}

// GetAgent retrieves an agent by ID
func (s *Server) GetAgent(ctx context.Context, req *api.GetAgentRequest) (*api.GetAgentResponse, error) {
	agent, ok := s.facade.GetAgent(req.AgentId)
	if !ok {
		return &api.GetAgentResponse{
			Found: false,
		}, nil
	}

	return &api.GetAgentResponse{
		Found: true,
		Agent: toAPIAgent(agent),
	}, nil
}

// GetMetricsHistory retrieves the recent samples of an agent
func (s *Server) GetMetricsHistory(ctx context.Context, req *api.GetMetricsHistoryRequest) (*api.GetMetricsHistoryResponse, error) {
	history := s.facade.MetricsHistory(req.AgentId)

	samples := make([]*api.MetricsSample, len(history))
	for i, sample := range history {
		samples[i] = toAPISample(sample)
	}

	return &api.GetMetricsHistoryResponse{
		Samples: samples,
	}, nil
}

// AgentCount returns the number of known agents
func (s *Server) AgentCount(ctx context.Context, req *api.AgentCountRequest) (*api.CountResponse, error) {
	return &api.CountResponse{
		Count: int64(s.facade.AgentCount()),
	}, nil
}

// AlertCount returns the number of stored alerts
func (s *Server) AlertCount(ctx context.Context, req *api.AlertCountRequest) (*api.CountResponse, error) {
	return &api.CountResponse{
		Count: int64(s.facade.AlertCount()),
	}, nil
}

// Ping reports liveness
func (s *Server) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{
		Status: s.facade.Ping(),
	}, nil
}

func toAPIAgent(agent models.Agent) *api.Agent {
	return &api.Agent{
		AgentId:       agent.AgentID,
		OriginAddress: agent.OriginAddress,
		LatestSample:  toAPISample(agent.LatestSample),
		LastUpdatedAt: agent.LastUpdatedAt.UnixMilli(),
		Status:        string(agent.Status),
	}
}

func toAPISample(sample models.MetricsSample) *api.MetricsSample {
	return &api.MetricsSample{
		AgentId:     sample.AgentID,
		CpuUsage:    sample.CPUUsage,
		MemoryUsage: sample.MemoryUsage,
		DiskUsage:   sample.DiskUsage,
		TakenAt:     sample.TakenAt.UnixMilli(),
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("Query failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("Query served", fields...)
		}

		return resp, err
	}
}
