package widget

import (
	"context"

	"github.com/companin/widget/internal/model"
)

// API is the part of the Companin API a widget session uses.
// *apiclient.Client satisfies it.
type API interface {
	GetAuthToken(ctx context.Context, clientID string) (string, error)

	CreateSession(ctx context.Context, token string, req model.CreateSessionRequest) (*model.CreateSessionResponse, error)
	ListSessionMessages(ctx context.Context, token, sessionID string) ([]model.APIMessage, error)
	SendSessionMessage(ctx context.Context, token, sessionID string, req model.SendMessageRequest) (*model.SendMessageResponse, error)

	CreateConversation(ctx context.Context, token string, req model.CreateConversationRequest) (*model.Conversation, error)
	ListConversations(ctx context.Context, token string) ([]model.Conversation, error)
	ListConversationMessages(ctx context.Context, token, conversationID string) ([]model.APIMessage, error)
	SendConversationMessage(ctx context.Context, token, conversationID string, req model.SendMessageRequest) (*model.SendMessageResponse, error)

	GetAssistant(ctx context.Context, token, assistantID string) (*model.Assistant, error)
	GetWidgetConfig(ctx context.Context, token, configID string) (*model.WidgetConfig, error)

	SubmitFeedback(ctx context.Context, token, sessionID string, req model.FeedbackRequest) error
	GetFeedbackStatus(ctx context.Context, token, sessionID string) (*model.FeedbackStatus, error)
}

// listMessages fetches history from the endpoint family of the variant.
func (s *Session) listMessages(ctx context.Context, token, id string) ([]model.APIMessage, error) {
	if s.opts.Variant == model.VariantConversation {
		return s.api.ListConversationMessages(ctx, token, id)
	}
	return s.api.ListSessionMessages(ctx, token, id)
}

// sendMessage posts a message to the endpoint family of the variant.
func (s *Session) sendMessage(ctx context.Context, token, id string, req model.SendMessageRequest) error {
	var err error
	if s.opts.Variant == model.VariantConversation {
		_, err = s.api.SendConversationMessage(ctx, token, id, req)
	} else {
		_, err = s.api.SendSessionMessage(ctx, token, id, req)
	}
	return err
}
