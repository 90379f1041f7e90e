package events

import "time"

// Workflow event types published on the event bus.
const (
	TypeWorkflowStarted        = "workflow.started"
	TypeWorkflowStageCompleted = "workflow.stage_completed"
	TypeWorkflowStageFailed    = "workflow.stage_failed"
	TypeWorkflowAdvanced       = "workflow.advanced"
	TypeWorkflowFinalized      = "workflow.finalized"
	TypeWorkflowCancelled      = "workflow.cancelled"
	TypeWorkflowFailed         = "workflow.failed"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "workflow.started").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the only Event implementation used on the wire; consumers
// rebuild it from the subject and the payload.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewWorkflowEvent builds an event about one workflow session. The session
// and owner ids and the occurrence time are embedded in the payload so a
// consumer can rebuild the event without out-of-band metadata.
func NewWorkflowEvent(eventType, sessionID, ownerID string, data map[string]interface{}) BaseEvent {
	now := time.Now().UTC()
	payload := make(map[string]interface{}, len(data)+3)
	for k, v := range data {
		payload[k] = v
	}
	payload["session_id"] = sessionID
	payload["owner_id"] = ownerID
	payload["occurred_at"] = now.Format(time.RFC3339Nano)

	return BaseEvent{Type: eventType, Data: payload, OccurredAt: now}
}

// SessionID returns the session id embedded by NewWorkflowEvent.
func SessionID(e Event) string {
	id, _ := e.Payload()["session_id"].(string)
	return id
}

// OccurredAt parses the timestamp embedded by NewWorkflowEvent, falling back
// to fallback when it is missing or malformed.
func OccurredAt(payload map[string]interface{}, fallback time.Time) time.Time {
	raw, ok := payload["occurred_at"].(string)
	if !ok {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fallback
	}
	return t
}
