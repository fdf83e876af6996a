package widget

import (
	"context"

	"go.uber.org/zap"

	"github.com/companin/widget/internal/model"
)

// LoadHistory replaces the transcript with the server history. Failures are
// logged and returned as a HistoryLoadFailure; the transcript is left alone.
func (s *Session) LoadHistory(ctx context.Context) error {
	id, token, err := s.currentSession()
	if err != nil {
		return err
	}

	history, err := s.listMessages(ctx, token, id)
	if err != nil {
		f := newFailure(HistoryLoadFailure, "Failed to load messages", err)
		s.logger.Warn("failed to load history", zap.String("session_id", id), zap.Error(err))
		return f
	}

	s.mu.Lock()
	if s.state.Phase != PhaseActive || s.state.SessionID != id {
		s.mu.Unlock()
		return nil
	}
	s.replaceHistoryLocked(history)
	s.mu.Unlock()

	s.gate.Touch()
	s.changed()
	return nil
}

// replaceHistoryLocked installs history wholesale and drops scripted
// responses. The caller holds s.mu.
func (s *Session) replaceHistoryLocked(history []model.APIMessage) {
	s.messages = visibleMessages(history)
	s.flowResponses = nil
}

// visibleMessages maps API messages to the transcript. While no user message
// exists, assistant messages are the auto-greeting and are hidden.
func visibleMessages(history []model.APIMessage) []model.Message {
	hasUser := false
	for _, m := range history {
		if m.Sender == model.SenderUser {
			hasUser = true
			break
		}
	}

	out := make([]model.Message, 0, len(history))
	for _, m := range history {
		if !hasUser && m.Sender == model.SenderAssistant {
			continue
		}
		out = append(out, m.ToMessage())
	}
	return out
}
