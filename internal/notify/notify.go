// Package notify publishes high-risk stress assessments to downstream
// consumers such as caregiver dashboards.
package notify

import (
	"context"
	"time"
)

// Alert is the payload published for a high-risk assessment.
type Alert struct {
	RecordID    int64     `json:"record_id"`
	User        string    `json:"user"`
	StressLevel string    `json:"stress_level"`
	Score       int       `json:"score"`
	BPStage     string    `json:"bp_stage"`
	BPRisk      string    `json:"bp_risk"`
	Systolic    int       `json:"systolic"`
	Diastolic   int       `json:"diastolic"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher delivers alerts. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, a Alert) error
	Close() error
}

// NoopPublisher drops every alert. Used when no broker is configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, Alert) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
