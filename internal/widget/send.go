package widget

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/pkg/metrics"
)

// TempIDPrefix marks optimistic messages not yet confirmed by the API.
const TempIDPrefix = "temp-"

const noSessionBanner = "Session or authentication token not available. Please refresh the page."

// Submit sends the composer text.
func (s *Session) Submit(ctx context.Context) error {
	return s.SendText(ctx, s.Input())
}

// SendText sends text as a user message. The message appears immediately
// and the composer is cleared; on failure both are rolled back.
func (s *Session) SendText(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return ErrEmptyMessage
	}

	id, token, err := s.currentSession()
	if err != nil {
		s.mu.Lock()
		s.banner = noSessionBanner
		s.mu.Unlock()
		s.changed()
		return err
	}

	tempID := TempIDPrefix + uuid.NewString()
	s.mu.Lock()
	s.messages = append(s.messages, model.Message{
		ID:        tempID,
		Text:      content,
		Sender:    model.SenderUser,
		Timestamp: s.now(),
		Pending:   true,
	})
	s.input = ""
	s.banner = ""
	s.mu.Unlock()
	s.changed()

	done := s.beginTyping()
	defer done()

	err = s.sendMessage(ctx, token, id, model.SendMessageRequest{
		Content: content,
		Locale:  s.opts.Locale,
	})
	if err != nil {
		return s.rollbackSend(ctx, tempID, text, id, err)
	}

	metrics.MessagesTotal.WithLabelValues("sent").Inc()
	s.record(ctx, model.EventMessageSent, id, "")

	if err := s.LoadHistory(ctx); err != nil {
		s.logger.Warn("failed to reload history after send", zap.Error(err))
	}
	return nil
}

// rollbackSend removes the optimistic message, restores the composer and
// shows the error. An expired session also loses its stored record.
func (s *Session) rollbackSend(ctx context.Context, tempID, text, sessionID string, err error) error {
	f := newFailure(MessageSendFailure, "Failed to send message", err)

	s.mu.Lock()
	for i, m := range s.messages {
		if m.ID == tempID {
			s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
			break
		}
	}
	s.input = text
	s.banner = f.Message
	s.mu.Unlock()

	if isExpired(err) {
		s.logger.Info("session expired on send, clearing stored record", zap.String("session_id", sessionID))
		s.records.ClearSession(ctx, s.opts.ClientID, s.opts.AssistantID)
	}

	metrics.MessagesTotal.WithLabelValues("failed").Inc()
	s.record(ctx, model.EventMessageFailed, sessionID, f.Message)
	s.logger.Warn("failed to send message", zap.String("session_id", sessionID), zap.Error(err))
	s.changed()
	return f
}
