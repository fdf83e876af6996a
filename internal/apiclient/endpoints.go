package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/companin/widget/internal/model"
)

// GetAuthToken exchanges a client id for a short-lived bearer token.
func (c *Client) GetAuthToken(ctx context.Context, clientID string) (string, error) {
	body, err := c.do(ctx, request{
		operation: "auth.widget_token",
		method:    http.MethodPost,
		path:      apiPrefix + "/auth/widget-token",
		body:      model.AuthTokenRequest{ClientID: clientID},
	})
	if err != nil {
		return "", err
	}

	var resp model.AuthTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode auth token response: %w", err)
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", newAPIError("auth.widget_token", http.StatusOK, body)
	}
	return resp.Token, nil
}

// CreateSession opens a new widget session.
func (c *Client) CreateSession(ctx context.Context, token string, req model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	var resp model.CreateSessionResponse
	err := c.call(ctx, request{
		operation: "sessions.create",
		method:    http.MethodPost,
		path:      apiPrefix + "/sessions/",
		token:     token,
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, &APIError{Operation: "sessions.create", Status: http.StatusOK, Detail: "missing session_id"}
	}
	return &resp, nil
}

// ListSessionMessages returns the full message history of a session.
func (c *Client) ListSessionMessages(ctx context.Context, token, sessionID string) ([]model.APIMessage, error) {
	var resp model.ListMessagesResponse
	err := c.call(ctx, request{
		operation: "sessions.messages.list",
		method:    http.MethodGet,
		path:      apiPrefix + "/sessions/" + url.PathEscape(sessionID) + "/messages",
		token:     token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendSessionMessage posts a user message to a session.
func (c *Client) SendSessionMessage(ctx context.Context, token, sessionID string, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	var resp model.SendMessageResponse
	err := c.call(ctx, request{
		operation: "sessions.messages.send",
		method:    http.MethodPost,
		path:      apiPrefix + "/sessions/" + url.PathEscape(sessionID) + "/messages",
		token:     token,
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateConversation opens a new conversation for a customer.
func (c *Client) CreateConversation(ctx context.Context, token string, req model.CreateConversationRequest) (*model.Conversation, error) {
	var resp model.Conversation
	err := c.call(ctx, request{
		operation: "conversations.create",
		method:    http.MethodPost,
		path:      apiPrefix + "/conversations/",
		token:     token,
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &APIError{Operation: "conversations.create", Status: http.StatusOK, Detail: "missing id"}
	}
	return &resp, nil
}

// ListConversations lists the conversations visible to token.
func (c *Client) ListConversations(ctx context.Context, token string) ([]model.Conversation, error) {
	var resp model.ListConversationsResponse
	err := c.call(ctx, request{
		operation: "conversations.list",
		method:    http.MethodGet,
		path:      apiPrefix + "/conversations/",
		token:     token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// ListConversationMessages returns the message history of a conversation.
func (c *Client) ListConversationMessages(ctx context.Context, token, conversationID string) ([]model.APIMessage, error) {
	var resp model.ListMessagesResponse
	err := c.call(ctx, request{
		operation: "conversations.messages.list",
		method:    http.MethodGet,
		path:      apiPrefix + "/conversations/" + url.PathEscape(conversationID) + "/messages",
		token:     token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendConversationMessage posts a user message to a conversation.
func (c *Client) SendConversationMessage(ctx context.Context, token, conversationID string, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	var resp model.SendMessageResponse
	err := c.call(ctx, request{
		operation: "conversations.messages.send",
		method:    http.MethodPost,
		path:      apiPrefix + "/conversations/" + url.PathEscape(conversationID) + "/messages",
		token:     token,
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAssistant fetches the display details of an assistant.
func (c *Client) GetAssistant(ctx context.Context, token, assistantID string) (*model.Assistant, error) {
	var resp model.Assistant
	err := c.call(ctx, request{
		operation: "assistants.get",
		method:    http.MethodGet,
		path:      apiPrefix + "/assistants/" + url.PathEscape(assistantID),
		token:     token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWidgetConfig fetches a widget config. It lives outside /api/v1 and
// may answer with the bare config object instead of an envelope.
func (c *Client) GetWidgetConfig(ctx context.Context, token, configID string) (*model.WidgetConfig, error) {
	const operation = "widget_config.get"
	body, err := c.do(ctx, request{
		operation: operation,
		method:    http.MethodGet,
		path:      "/widget-config/" + url.PathEscape(configID),
		token:     token,
	})
	if err != nil {
		return nil, err
	}

	var resp model.WidgetConfig
	if gjson.GetBytes(body, "status").Exists() {
		if err := decodeEnvelope(operation, body, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return &resp, nil
}

// SubmitFeedback posts a rating for a session. Any 2xx counts as accepted.
func (c *Client) SubmitFeedback(ctx context.Context, token, sessionID string, req model.FeedbackRequest) error {
	_, err := c.do(ctx, request{
		operation: "sessions.feedback.submit",
		method:    http.MethodPost,
		path:      apiPrefix + "/sessions/" + url.PathEscape(sessionID) + "/feedback",
		token:     token,
		body:      req,
	})
	return err
}

// GetFeedbackStatus reports whether a session already has feedback.
func (c *Client) GetFeedbackStatus(ctx context.Context, token, sessionID string) (*model.FeedbackStatus, error) {
	var resp model.FeedbackStatus
	err := c.call(ctx, request{
		operation: "sessions.feedback.get",
		method:    http.MethodGet,
		path:      apiPrefix + "/sessions/" + url.PathEscape(sessionID) + "/feedback",
		token:     token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
