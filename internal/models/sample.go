package models

import (
	"time"
)

// MetricsSample is one cpu/memory/disk usage snapshot reported by an agent
type MetricsSample struct {
	AgentID     string    `json:"agent_id"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	TakenAt     time.Time `json:"taken_at"`
}

// NewMetricsSample creates a sample stamped with the current time
func NewMetricsSample(agentID string, cpu, memory, disk float64) MetricsSample {
	return MetricsSample{
		AgentID:     agentID,
		CPUUsage:    cpu,
		MemoryUsage: memory,
		DiskUsage:   disk,
		TakenAt:     time.Now(),
	}
}
