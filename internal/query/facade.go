// Package query exposes read-only access to agent and alert state.
package query

import (
	"fmt"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// AgentReader is the read side of the agent registry
type AgentReader interface {
	List() []models.Agent
	Get(agentID string) (models.Agent, bool)
	History(agentID string) []models.MetricsSample
	Count() int
}

// AlertReader is the read side of the alert log
type AlertReader interface {
	List() []models.Alert
	Count() int
}

// Facade passes reads through to the stores. It holds no state of its own,
// so every result carries the stores' copy-on-read guarantee.
type Facade struct {
	agents AgentReader
	alerts AlertReader
}

// New creates a facade over the given stores
func New(agents AgentReader, alerts AlertReader) *Facade {
	return &Facade{
		agents: agents,
		alerts: alerts,
	}
}

// ListAgents returns all known agents
func (f *Facade) ListAgents() []models.Agent {
	return f.agents.List()
}

// ListAlerts returns all alerts in insertion order
func (f *Facade) ListAlerts() []models.Alert {
	return f.alerts.List()
}

// GetAgent returns one agent, or false when it is unknown
func (f *Facade) GetAgent(agentID string) (models.Agent, bool) {
	return f.agents.Get(agentID)
}

// MetricsHistory returns the recent samples of an agent, empty when unknown
func (f *Facade) MetricsHistory(agentID string) []models.MetricsSample {
	return f.agents.History(agentID)
}

// AgentCount returns the number of known agents
func (f *Facade) AgentCount() int {
	return f.agents.Count()
}

// AlertCount returns the number of stored alerts
func (f *Facade) AlertCount() int {
	return f.alerts.Count()
}

// Ping reports liveness along with the current counters
func (f *Facade) Ping() string {
	return fmt.Sprintf("Monitoring service up - %d agent(s) - %d alert(s)", f.AgentCount(), f.AlertCount())
}
