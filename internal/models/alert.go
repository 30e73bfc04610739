package models

import (
	"time"
)

// Severity classifies how far a metric is above its threshold
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severity thresholds, in percent.
const (
	CriticalThreshold = 95.0
	HighThreshold     = 90.0
	MediumThreshold   = 80.0
)

// ClassifySeverity maps a metric value to a severity. The metric type does not matter.
func ClassifySeverity(value float64) Severity {
	switch {
	case value >= CriticalThreshold:
		return SeverityCritical
	case value >= HighThreshold:
		return SeverityHigh
	case value >= MediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Alert records a single threshold breach detected during ingestion
type Alert struct {
	AgentID  string    `json:"agent_id"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
	Severity Severity  `json:"severity"`
}

// NewAlert creates an alert raised now
func NewAlert(agentID, message string, severity Severity) Alert {
	return Alert{
		AgentID:  agentID,
		Message:  message,
		RaisedAt: time.Now(),
		Severity: severity,
	}
}
