package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "monitoring.MonitoringService"

const (
	MonitoringService_ListAgents_FullMethodName        = "/monitoring.MonitoringService/ListAgents"
	MonitoringService_ListAlerts_FullMethodName        = "/monitoring.MonitoringService/ListAlerts"
	MonitoringService_GetAgent_FullMethodName          = "/monitoring.MonitoringService/GetAgent"
	MonitoringService_GetMetricsHistory_FullMethodName = "/monitoring.MonitoringService/GetMetricsHistory"
	MonitoringService_AgentCount_FullMethodName        = "/monitoring.MonitoringService/AgentCount"
	MonitoringService_AlertCount_FullMethodName        = "/monitoring.MonitoringService/AlertCount"
	MonitoringService_Ping_FullMethodName              = "/monitoring.MonitoringService/Ping"
)

// MonitoringServiceClient is the client API for the monitoring query service
type MonitoringServiceClient interface {
	ListAgents(ctx context.Context, in *ListAgentsRequest, opts ...grpc.CallOption) (*ListAgentsResponse, error)
	ListAlerts(ctx context.Context, in *ListAlertsRequest, opts ...grpc.CallOption) (*ListAlertsResponse, error)
	GetAgent(ctx context.Context, in *GetAgentRequest, opts ...grpc.CallOption) (*GetAgentResponse, error)
	GetMetricsHistory(ctx context.Context, in *GetMetricsHistoryRequest, opts ...grpc.CallOption) (*GetMetricsHistoryResponse, error)
	AgentCount(ctx context.Context, in *AgentCountRequest, opts ...grpc.CallOption) (*CountResponse, error)
	AlertCount(ctx context.Context, in *AlertCountRequest, opts ...grpc.CallOption) (*CountResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type monitoringServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMonitoringServiceClient creates a client that speaks the JSON codec on every call
func NewMonitoringServiceClient(cc grpc.ClientConnInterface) MonitoringServiceClient {
	return &monitoringServiceClient{cc}
}

func (c *monitoringServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *monitoringServiceClient) ListAgents(ctx context.Context, in *ListAgentsRequest, opts ...grpc.CallOption) (*ListAgentsResponse, error) {
	out := new(ListAgentsResponse)
	if err := c.invoke(ctx, MonitoringService_ListAgents_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) ListAlerts(ctx context.Context, in *ListAlertsRequest, opts ...grpc.CallOption) (*ListAlertsResponse, error) {
	out := new(ListAlertsResponse)
	if err := c.invoke(ctx, MonitoringService_ListAlerts_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) GetAgent(ctx context.Context, in *GetAgentRequest, opts ...grpc.CallOption) (*GetAgentResponse, error) {
	out := new(GetAgentResponse)
	if err := c.invoke(ctx, MonitoringService_GetAgent_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) GetMetricsHistory(ctx context.Context, in *GetMetricsHistoryRequest, opts ...grpc.CallOption) (*GetMetricsHistoryResponse, error) {
	out := new(GetMetricsHistoryResponse)
	if err := c.invoke(ctx, MonitoringService_GetMetricsHistory_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) AgentCount(ctx context.Context, in *AgentCountRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	out := new(CountResponse)
	if err := c.invoke(ctx, MonitoringService_AgentCount_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) AlertCount(ctx context.Context, in *AlertCountRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	out := new(CountResponse)
	if err := c.invoke(ctx, MonitoringService_AlertCount_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *monitoringServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, MonitoringService_Ping_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// MonitoringServiceServer is the server API for the monitoring query service.
// Implementations must embed UnimplementedMonitoringServiceServer.
type MonitoringServiceServer interface {
	ListAgents(context.Context, *ListAgentsRequest) (*ListAgentsResponse, error)
	ListAlerts(context.Context, *ListAlertsRequest) (*ListAlertsResponse, error)
	GetAgent(context.Context, *GetAgentRequest) (*GetAgentResponse, error)
	GetMetricsHistory(context.Context, *GetMetricsHistoryRequest) (*GetMetricsHistoryResponse, error)
	AgentCount(context.Context, *AgentCountRequest) (*CountResponse, error)
	AlertCount(context.Context, *AlertCountRequest) (*CountResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	mustEmbedUnimplementedMonitoringServiceServer()
}

// UnimplementedMonitoringServiceServer answers every method with codes.Unimplemented
type UnimplementedMonitoringServiceServer struct{}

func (UnimplementedMonitoringServiceServer) ListAgents(context.Context, *ListAgentsRequest) (*ListAgentsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAgents not implemented")
}
func (UnimplementedMonitoringServiceServer) ListAlerts(context.Context, *ListAlertsRequest) (*ListAlertsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAlerts not implemented")
}
func (UnimplementedMonitoringServiceServer) GetAgent(context.Context, *GetAgentRequest) (*GetAgentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAgent not implemented")
}
func (UnimplementedMonitoringServiceServer) GetMetricsHistory(context.Context, *GetMetricsHistoryRequest) (*GetMetricsHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMetricsHistory not implemented")
}
func (UnimplementedMonitoringServiceServer) AgentCount(context.Context, *AgentCountRequest) (*CountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AgentCount not implemented")
}
func (UnimplementedMonitoringServiceServer) AlertCount(context.Context, *AlertCountRequest) (*CountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AlertCount not implemented")
}
func (UnimplementedMonitoringServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedMonitoringServiceServer) mustEmbedUnimplementedMonitoringServiceServer() {}

// RegisterMonitoringServiceServer registers srv on s
func RegisterMonitoringServiceServer(s grpc.ServiceRegistrar, srv MonitoringServiceServer) {
	s.RegisterService(&MonitoringService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(MonitoringServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MonitoringServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MonitoringServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MonitoringService_ServiceDesc is the grpc.ServiceDesc for the monitoring query service
var MonitoringService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitoringServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListAgents",
			Handler:    unaryHandler(MonitoringService_ListAgents_FullMethodName, MonitoringServiceServer.ListAgents),
		},
		{
			MethodName: "ListAlerts",
			Handler:    unaryHandler(MonitoringService_ListAlerts_FullMethodName, MonitoringServiceServer.ListAlerts),
		},
		{
			MethodName: "GetAgent",
			Handler:    unaryHandler(MonitoringService_GetAgent_FullMethodName, MonitoringServiceServer.GetAgent),
		},
		{
			MethodName: "GetMetricsHistory",
			Handler:    unaryHandler(MonitoringService_GetMetricsHistory_FullMethodName, MonitoringServiceServer.GetMetricsHistory),
		},
		{
			MethodName: "AgentCount",
			Handler:    unaryHandler(MonitoringService_AgentCount_FullMethodName, MonitoringServiceServer.AgentCount),
		},
		{
			MethodName: "AlertCount",
			Handler:    unaryHandler(MonitoringService_AlertCount_FullMethodName, MonitoringServiceServer.AlertCount),
		},
		{
			MethodName: "Ping",
			Handler:    unaryHandler(MonitoringService_Ping_FullMethodName, MonitoringServiceServer.Ping),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "monitoring.proto",
}
