package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/models"
)

const (
	eventLogKey = "events:log"

	// EventAlertRaised is the event type recorded for every stored alert
	EventAlertRaised = "alert_raised"
)

// Client wraps the Redis client and journals alerts
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used to report unreadable journal entries
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new Redis client
func NewClient(addr string, opts ...Option) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})

	c := &Client{
		client: rdb,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks if the Redis connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// AlertRecord is the journaled form of an alert
type AlertRecord struct {
	AgentID  string `json:"agent_id"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	RaisedAt int64  `json:"raised_at"`
}

// Event is an entry of the durable event log
type Event struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Alert     AlertRecord `json:"alert"`
	Timestamp int64       `json:"timestamp"`
}

func alertKey(agentID string) string {
	return fmt.Sprintf("alerts:%s", agentID)
}

func newAlertRecord(alert models.Alert) AlertRecord {
	return AlertRecord{
		AgentID:  alert.AgentID,
		Message:  alert.Message,
		Severity: string(alert.Severity),
		RaisedAt: alert.RaisedAt.UnixMilli(),
	}
}

// encodeAlert returns the per-agent list entry and the event log entry for alert
func encodeAlert(alert models.Alert) (record, event []byte, err error) {
	rec := newAlertRecord(alert)

	record, err = json.Marshal(rec)
	if err != nil {
		return nil, nil, err
	}

	event, err = json.Marshal(Event{
		Type:      EventAlertRaised,
		Message:   alert.Message,
		Alert:     rec,
		Timestamp: alert.RaisedAt.Unix(),
	})
	if err != nil {
		return nil, nil, err
	}

	return record, event, nil
}

// RecordAlert appends alert to the agent's alert list and to the event log
func (c *Client) RecordAlert(ctx context.Context, alert models.Alert) error {
	record, event, err := encodeAlert(alert)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, alertKey(alert.AgentID), record)
	pipe.LPush(ctx, eventLogKey, event)
	_, err = pipe.Exec(ctx)
	return err
}

// ErrInvalidLimit is returned by RecentAlerts for a non-positive limit
var ErrInvalidLimit = errors.New("limit must be positive")

// RecentAlerts retrieves up to limit journaled alerts of an agent, newest first.
// Entries that do not decode are logged and skipped.
func (c *Client) RecentAlerts(ctx context.Context, agentID string, limit int64) ([]AlertRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	entries, err := c.client.LRange(ctx, alertKey(agentID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]AlertRecord, 0, len(entries))
	for i, entry := range entries {
		var rec AlertRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			c.logger.Warn("Skipping unreadable journal entry",
				zap.String("key", alertKey(agentID)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}
