package store

import (
	"sort"
	"sync"
	"time"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// DefaultHistorySize is the number of samples kept per agent
const DefaultHistorySize = 50

// AgentStore keeps the latest state and bounded sample history of every agent.
// All reads return copies; nothing handed out aliases internal storage.
type AgentStore struct {
	mu          sync.RWMutex
	agents      map[string]*agentEntry
	historySize int
	policy      StatusPolicy
	now         func() time.Time
}

// AgentStoreOption configures an AgentStore
type AgentStoreOption func(*AgentStore)

// WithStatusPolicy sets how reported samples change an agent's status
func WithStatusPolicy(policy StatusPolicy) AgentStoreOption {
	return func(s *AgentStore) {
		if policy != nil {
			s.policy = policy
		}
	}
}

type agentEntry struct {
	agent   models.Agent
	history []models.MetricsSample
}

// NewAgentStore creates an agent store keeping historySize samples per agent.
// A non-positive size falls back to DefaultHistorySize. The status policy defaults to AlwaysOnline.
func NewAgentStore(historySize int, opts ...AgentStoreOption) *AgentStore {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	s := &AgentStore{
		agents:      make(map[string]*agentEntry),
		historySize: historySize,
		policy:      AlwaysOnline,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Update records a sample for its agent, creating the agent on first sight.
// The status is whatever the store's policy returns for the sample.
func (s *AgentStore) Update(sample models.MetricsSample, originAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.agents[sample.AgentID]
	if !ok {
		entry = &agentEntry{
			agent:   models.NewAgent(sample, originAddress),
			history: make([]models.MetricsSample, 0, s.historySize),
		}
		entry.agent.Status = s.policy(models.Agent{}, sample)
		entry.agent.LastUpdatedAt = s.now()
		s.agents[sample.AgentID] = entry
	} else {
		entry.agent.Status = s.policy(entry.agent, sample)
		entry.agent.LatestSample = sample
		entry.agent.LastUpdatedAt = s.now()
	}

	entry.history = append(entry.history, sample)

	// Drop the oldest samples once over capacity
	if over := len(entry.history) - s.historySize; over > 0 {
		copy(entry.history, entry.history[over:])
		entry.history = entry.history[:s.historySize]
	}
}

// setStatus changes the status of a known agent until its next report.
// It returns false for unknown agents.
func (s *AgentStore) setStatus(agentID string, status models.AgentStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.agents[agentID]
	if !ok {
		return false
	}
	entry.agent.Status = status

	return true
}

// Get retrieves a copy of one agent
func (s *AgentStore) Get(agentID string) (models.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.agents[agentID]
	if !ok {
		return models.Agent{}, false
	}

	return entry.agent, true
}

// List retrieves a copy of all agents ordered by agent ID
func (s *AgentStore) List() []models.Agent {
	s.mu.RLock()
	agents := make([]models.Agent, 0, len(s.agents))
	for _, entry := range s.agents {
		agents = append(agents, entry.agent)
	}
	s.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentID < agents[j].AgentID
	})

	return agents
}

// History retrieves a copy of an agent's samples, oldest first.
// Unknown agents yield an empty slice.
func (s *AgentStore) History(agentID string) []models.MetricsSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.agents[agentID]
	if !ok {
		return []models.MetricsSample{}
	}

	history := make([]models.MetricsSample, len(entry.history))
	copy(history, entry.history)

	return history
}

// Count returns the number of known agents
func (s *AgentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.agents)
}
