// Package model defines data structures shared by the widget service.
package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Message is one transcript entry as the widget shows it.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// Pending marks an optimistic entry that has not been confirmed by the API.
	Pending bool `json:"pending,omitempty"`
}

// APIMessage is a message as returned by the Companin API.
type APIMessage struct {
	ID        string         `json:"id"`
	Sender    Sender         `json:"sender"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToMessage converts an API message to its transcript form.
func (m APIMessage) ToMessage() Message {
	return Message{
		ID:        m.ID,
		Text:      m.Content,
		Sender:    m.Sender,
		Timestamp: m.CreatedAt,
	}
}

// ListMessagesResponse is the data payload of a message history call.
type ListMessagesResponse struct {
	Messages []APIMessage `json:"messages"`
}

// SendMessageRequest is the body posted to a session's message endpoint.
type SendMessageRequest struct {
	Content string `json:"content"`
	Locale  string `json:"locale,omitempty"`
}

// AssistantReply carries the assistant turn produced for a sent message.
type AssistantReply struct {
	Content string `json:"content"`
}

// SendMessageResponse is the data payload of a send call.
type SendMessageResponse struct {
	AssistantMessage *AssistantReply `json:"assistant_message,omitempty"`
}
