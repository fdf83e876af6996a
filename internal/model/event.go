package model

import (
	"time"
)

// EventType represents the type of widget lifecycle event.
type EventType string

const (
	EventSessionCreated    EventType = "session_created"
	EventSessionRestored   EventType = "session_restored"
	EventSessionDiscovered EventType = "session_discovered"
	EventSessionExpired    EventType = "session_expired"
	EventMessageSent       EventType = "message_sent"
	EventMessageFailed     EventType = "message_failed"
	EventFlowTriggered     EventType = "flow_triggered"
	EventFeedbackSubmitted EventType = "feedback_submitted"
	EventFeedbackSkipped   EventType = "feedback_skipped"
)

// WidgetEvent is a lifecycle event emitted by a widget instance.
type WidgetEvent struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	ClientID    string            `json:"client_id"`
	AssistantID string            `json:"assistant_id"`
	SessionID   string            `json:"session_id,omitempty"`
	Variant     string            `json:"variant"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
