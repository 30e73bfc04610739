package models

import (
	"time"
)

// AgentStatus is the reported state of an agent
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "ONLINE"
	AgentStatusOffline AgentStatus = "OFFLINE"
	AgentStatusAlert   AgentStatus = "ALERT"
)

// Agent represents a remote process reporting health metrics.
// It holds no references, so a plain assignment yields an independent copy.
type Agent struct {
	AgentID       string        `json:"agent_id"`
	OriginAddress string        `json:"origin_address"`
	LatestSample  MetricsSample `json:"latest_sample"`
	LastUpdatedAt time.Time     `json:"last_updated_at"`
	Status        AgentStatus   `json:"status"`
}

// NewAgent creates an online agent from its first sample
func NewAgent(sample MetricsSample, originAddress string) Agent {
	return Agent{
		AgentID:       sample.AgentID,
		OriginAddress: originAddress,
		LatestSample:  sample,
		LastUpdatedAt: time.Now(),
		Status:        AgentStatusOnline,
	}
}
