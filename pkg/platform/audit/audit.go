// Package audit captures admin actions against the fraud ledger. Events are
// emitted from domain logic and fanned out to a configured sink; emission is
// best-effort and never blocks or fails the action being audited.
package audit

import "time"

// Action names an auditable admin operation.
type Action string

const (
	ActionDetectionRunStarted   Action = "detection_run_started"
	ActionDetectionRunCompleted Action = "detection_run_completed"
	ActionDetectionRunFailed    Action = "detection_run_failed"
	ActionFlagReviewed          Action = "flag_reviewed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    Action            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Sink receives audit events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(event Event) error
	Close() error
}
