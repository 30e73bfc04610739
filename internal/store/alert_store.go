package store

import (
	"sync"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

// AlertStore is an append-only log of alerts
type AlertStore struct {
	mu        sync.RWMutex
	alerts    []models.Alert
	maxAlerts int
}

// NewAlertStore creates an alert store. When maxAlerts is positive the oldest
// alerts are evicted past that many entries; otherwise the log is unbounded.
func NewAlertStore(maxAlerts int) *AlertStore {
	if maxAlerts < 0 {
		maxAlerts = 0
	}

	return &AlertStore{
		maxAlerts: maxAlerts,
	}
}

// Append adds an alert to the end of the log
func (s *AlertStore) Append(alert models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, alert)

	if s.maxAlerts > 0 && len(s.alerts) > s.maxAlerts {
		over := len(s.alerts) - s.maxAlerts
		copy(s.alerts, s.alerts[over:])
		s.alerts = s.alerts[:s.maxAlerts]
	}
}

// List retrieves a copy of all alerts in insertion order
func (s *AlertStore) List() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]models.Alert, len(s.alerts))
	copy(alerts, s.alerts)

	return alerts
}

// Count returns the number of stored alerts
func (s *AlertStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.alerts)
}
