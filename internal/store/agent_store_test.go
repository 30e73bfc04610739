package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

func sampleN(agentID string, n int) models.MetricsSample {
	return models.MetricsSample{
		AgentID:     agentID,
		CPUUsage:    float64(n),
		MemoryUsage: float64(n) / 2,
		DiskUsage:   float64(n) / 4,
		TakenAt:     time.Unix(int64(n), 0),
	}
}

func TestAgentStoreUpdateCreatesAgent(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	s.Update(sampleN("A", 1), "192.168.1.101")

	agent, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "A", agent.AgentID)
	assert.Equal(t, "192.168.1.101", agent.OriginAddress)
	assert.Equal(t, models.AgentStatusOnline, agent.Status)
	assert.Equal(t, sampleN("A", 1), agent.LatestSample)
	assert.Equal(t, 1, s.Count())
}

func TestAgentStoreUpdateExistingAgent(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	s.Update(sampleN("A", 1), "10.0.0.1")
	clock = clock.Add(time.Minute)
	s.Update(sampleN("A", 2), "10.0.0.2")

	agent, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, sampleN("A", 2), agent.LatestSample)
	assert.Equal(t, clock, agent.LastUpdatedAt)
	// The origin is captured at creation only
	assert.Equal(t, "10.0.0.1", agent.OriginAddress)
	assert.Equal(t, 1, s.Count())
}

func TestAgentStoreUpdateForcesOnline(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	s.Update(sampleN("A", 1), "10.0.0.1")

	require.True(t, s.setStatus("A", models.AgentStatusOffline))
	agent, _ := s.Get("A")
	require.Equal(t, models.AgentStatusOffline, agent.Status)

	s.Update(sampleN("A", 2), "10.0.0.1")

	agent, _ = s.Get("A")
	assert.Equal(t, models.AgentStatusOnline, agent.Status)
}

func TestAgentStoreSetStatusUnknown(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	assert.False(t, s.setStatus("UNKNOWN", models.AgentStatusOffline))
	assert.Equal(t, 0, s.Count())
}

func TestAgentStoreCriticalUsagePolicy(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize, WithStatusPolicy(CriticalUsage))

	s.Update(models.MetricsSample{AgentID: "A", CPUUsage: 10, MemoryUsage: 96, DiskUsage: 10}, "10.0.0.1")
	agent, _ := s.Get("A")
	assert.Equal(t, models.AgentStatusAlert, agent.Status)

	s.Update(models.MetricsSample{AgentID: "A", CPUUsage: 10, MemoryUsage: 20, DiskUsage: 94.9}, "10.0.0.1")
	agent, _ = s.Get("A")
	assert.Equal(t, models.AgentStatusOnline, agent.Status)
}

func TestAgentStoreHistoryLength(t *testing.T) {
	for _, n := range []int{1, 10, 49, 50, 51, 120} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := NewAgentStore(DefaultHistorySize)
			for i := 1; i <= n; i++ {
				s.Update(sampleN("A", i), "10.0.0.1")
			}

			history := s.History("A")
			want := min(n, DefaultHistorySize)
			require.Len(t, history, want)

			// Most recent samples are kept, oldest first
			for i, sample := range history {
				assert.Equal(t, sampleN("A", n-want+1+i), sample)
			}
		})
	}
}

func TestAgentStoreEvictsFirstSample(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	for i := 1; i <= 51; i++ {
		s.Update(sampleN("A", i), "10.0.0.1")
	}

	history := s.History("A")
	require.Len(t, history, 50)
	assert.Equal(t, sampleN("A", 2), history[0])
	assert.Equal(t, sampleN("A", 51), history[49])
}

func TestAgentStoreUnknownAgent(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)

	agent, ok := s.Get("UNKNOWN")
	assert.False(t, ok)
	assert.Equal(t, models.Agent{}, agent)

	history := s.History("UNKNOWN")
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestAgentStoreReadsAreCopies(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	s.Update(sampleN("A", 1), "10.0.0.1")
	s.Update(sampleN("A", 2), "10.0.0.1")

	agents := s.List()
	agents[0].Status = models.AgentStatusAlert
	agents[0].LatestSample.CPUUsage = 99
	agents = append(agents, models.Agent{AgentID: "B"})

	history := s.History("A")
	history[0].CPUUsage = 99
	history = history[:0]

	agent, _ := s.Get("A")
	agent.OriginAddress = "changed"

	fresh, _ := s.Get("A")
	assert.Equal(t, models.AgentStatusOnline, fresh.Status)
	assert.Equal(t, "10.0.0.1", fresh.OriginAddress)
	assert.Equal(t, 2.0, fresh.LatestSample.CPUUsage)
	assert.Len(t, s.List(), 1)
	assert.Equal(t, []models.MetricsSample{sampleN("A", 1), sampleN("A", 2)}, s.History("A"))
}

func TestAgentStoreListSorted(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)
	for _, id := range []string{"C", "A", "B"} {
		s.Update(sampleN(id, 1), "10.0.0.1")
	}

	var ids []string
	for _, agent := range s.List() {
		ids = append(ids, agent.AgentID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

func TestAgentStoreCustomHistorySize(t *testing.T) {
	s := NewAgentStore(3)
	for i := 1; i <= 5; i++ {
		s.Update(sampleN("A", i), "10.0.0.1")
	}
	assert.Equal(t, []models.MetricsSample{sampleN("A", 3), sampleN("A", 4), sampleN("A", 5)}, s.History("A"))

	assert.Equal(t, DefaultHistorySize, NewAgentStore(0).historySize)
}

func TestAgentStoreConcurrentUpdates(t *testing.T) {
	s := NewAgentStore(DefaultHistorySize)

	const agents = 8
	const perAgent = 200

	var wg sync.WaitGroup
	for a := 0; a < agents; a++ {
		id := fmt.Sprintf("AGENT-%d", a)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 1; i <= perAgent; i++ {
				s.Update(sampleN(id, i), "10.0.0.1")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perAgent; i++ {
				_ = s.List()
				_ = s.History(id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, agents, s.Count())
	for a := 0; a < agents; a++ {
		id := fmt.Sprintf("AGENT-%d", a)
		history := s.History(id)
		require.Len(t, history, DefaultHistorySize)
		// Per-agent updates keep their submission order
		for i := 1; i < len(history); i++ {
			assert.Less(t, history[i-1].CPUUsage, history[i].CPUUsage)
		}
		agent, _ := s.Get(id)
		assert.Equal(t, float64(perAgent), agent.LatestSample.CPUUsage)
	}
}
