// Package api defines the monitoring query service contract shared by server and clients.
package api

// MetricsSample is one usage snapshot. TakenAt is in Unix milliseconds.
type MetricsSample struct {
	AgentId     string  `json:"agent_id"`
	CpuUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	TakenAt     int64   `json:"taken_at"`
}

// Agent is the latest known state of an agent. LastUpdatedAt is in Unix milliseconds.
type Agent struct {
	AgentId       string         `json:"agent_id"`
	OriginAddress string         `json:"origin_address"`
	LatestSample  *MetricsSample `json:"latest_sample"`
	LastUpdatedAt int64          `json:"last_updated_at"`
	Status        string         `json:"status"`
}

// Alert is a recorded threshold breach. RaisedAt is in Unix milliseconds.
type Alert struct {
	AgentId  string `json:"agent_id"`
	Message  string `json:"message"`
	RaisedAt int64  `json:"raised_at"`
	Severity string `json:"severity"`
}

type ListAgentsRequest struct{}

type ListAgentsResponse struct {
	Agents []*Agent `json:"agents"`
}

type ListAlertsRequest struct{}

type ListAlertsResponse struct {
	Alerts []*Alert `json:"alerts"`
}

type GetAgentRequest struct {
	AgentId string `json:"agent_id"`
}

type GetAgentResponse struct {
	Found bool   `json:"found"`
	Agent *Agent `json:"agent,omitempty"`
}

type GetMetricsHistoryRequest struct {
	AgentId string `json:"agent_id"`
}

type GetMetricsHistoryResponse struct {
	Samples []*MetricsSample `json:"samples"`
}

type AgentCountRequest struct{}

type AlertCountRequest struct{}

type CountResponse struct {
	Count int64 `json:"count"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
