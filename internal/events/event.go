// Package events publishes step lifecycle events to NATS JetStream.
package events

import (
	"time"
)

// Type is the kind of a step event. It is also the last subject token.
type Type string

const (
	TypeStarted  Type = "started"
	TypeCached   Type = "cached"
	TypeFinished Type = "finished"
	TypeFailed   Type = "failed"
)

// StepEvent is the JSON payload of every event.
type StepEvent struct {
	Type       Type      `json:"type"`
	RunID      string    `json:"run_id"`
	StepID     string    `json:"step_id"`
	StepName   string    `json:"step_name"`
	Checksum   string    `json:"checksum"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
