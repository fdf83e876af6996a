package model

import (
	"time"
)

// ConversationStatusActive is the only status a discoverable conversation may have.
const ConversationStatusActive = "active"

// CreateSessionRequest is the request to open a new widget session.
type CreateSessionRequest struct {
	AssistantID string `json:"assistant_id"`
	VisitorID   string `json:"visitor_id"`
	Locale      string `json:"locale,omitempty"`
}

// CreateSessionResponse is the data payload returned for a new session.
type CreateSessionResponse struct {
	SessionID string     `json:"session_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateConversationRequest is the request to open a new conversation.
type CreateConversationRequest struct {
	AssistantID string `json:"assistant_id"`
	CustomerID  string `json:"customer_id"`
}

// Conversation is a server-side conversation as listed by the API.
type Conversation struct {
	ID          string    `json:"id"`
	AssistantID string    `json:"assistant_id"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListConversationsResponse is the data payload for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// AuthTokenRequest exchanges a client id for a bearer token.
type AuthTokenRequest struct {
	ClientID string `json:"client_id"`
}

// AuthTokenResponse is the auth endpoint response.
type AuthTokenResponse struct {
	Token string `json:"token"`
}

// Assistant is the subset of assistant details the widget displays.
type Assistant struct {
	Name string `json:"name"`
}

// FeedbackRequest is the body posted to a session's feedback endpoint.
type FeedbackRequest struct {
	Rating  string `json:"rating"`
	Comment string `json:"comment"`
}

// FeedbackStatus reports whether a session already has feedback.
type FeedbackStatus struct {
	HasFeedback bool `json:"has_feedback"`
}
