package store

import (
	"fmt"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// StatusPolicy decides an agent's status when a new sample arrives.
// current is the zero Agent the first time an agent is seen.
type StatusPolicy func(current models.Agent, sample models.MetricsSample) models.AgentStatus

// AlwaysOnline marks every reporting agent ONLINE, whatever its previous status
func AlwaysOnline(models.Agent, models.MetricsSample) models.AgentStatus {
	return models.AgentStatusOnline
}

// CriticalUsage marks an agent ALERT while any usage in its latest sample is at or above
// the critical threshold, and ONLINE otherwise
func CriticalUsage(_ models.Agent, sample models.MetricsSample) models.AgentStatus {
	if max(sample.CPUUsage, sample.MemoryUsage, sample.DiskUsage) >= models.CriticalThreshold {
		return models.AgentStatusAlert
	}
	return models.AgentStatusOnline
}

// Status policy names accepted by ParseStatusPolicy
const (
	PolicyAlwaysOnline  = "always_online"
	PolicyCriticalUsage = "critical_usage"
)

// ParseStatusPolicy resolves a policy by name. An empty name selects AlwaysOnline.
func ParseStatusPolicy(name string) (StatusPolicy, error) {
	switch name {
	case "", PolicyAlwaysOnline:
		return AlwaysOnline, nil
	case PolicyCriticalUsage:
		return CriticalUsage, nil
	default:
		return nil, fmt.Errorf("unknown status policy: %s", name)
	}
}
