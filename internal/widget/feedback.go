package widget

import (
	"context"

	"go.uber.org/zap"

	"github.com/companin/widget/internal/feedback"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/pkg/metrics"
)

// feedbackEnabled reports whether the variant talks to the session
// feedback endpoints.
func (s *Session) feedbackEnabled() bool {
	return s.opts.Variant != model.VariantConversation
}

func (s *Session) feedbackProbe() (bool, int) {
	if !s.feedbackEnabled() {
		return false, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase == PhaseActive, len(s.messages)
}

// loadFeedbackStatus marks the gate submitted when the restored session
// already has feedback.
func (s *Session) loadFeedbackStatus(ctx context.Context, token, sessionID string) {
	if !s.feedbackEnabled() {
		return
	}
	st, err := s.api.GetFeedbackStatus(ctx, token, sessionID)
	if err != nil {
		s.logger.Debug("failed to load feedback status", zap.Error(err))
		return
	}
	if st.HasFeedback {
		s.gate.MarkSubmitted()
	}
}

// FeedbackStatus returns the state of the feedback prompt.
func (s *Session) FeedbackStatus() feedback.Status {
	return s.gate.Status()
}

// SubmitFeedback posts a rating. A failed post still closes the prompt.
func (s *Session) SubmitFeedback(ctx context.Context, rating, comment string) error {
	if !s.feedbackEnabled() {
		return ErrFeedbackDisabled
	}
	r, err := feedback.ParseRating(rating)
	if err != nil {
		return err
	}
	id, token, err := s.currentSession()
	if err != nil {
		return err
	}

	poster := feedback.PosterFunc(func(ctx context.Context, r feedback.Rating, comment string) error {
		return s.api.SubmitFeedback(ctx, token, id, model.FeedbackRequest{
			Rating:  string(r),
			Comment: comment,
		})
	})
	if err := s.gate.Submit(ctx, poster, r, comment); err != nil {
		return err
	}

	metrics.FeedbackTotal.WithLabelValues(string(feedback.OutcomeSubmitted)).Inc()
	s.record(ctx, model.EventFeedbackSubmitted, id, string(r))
	s.changed()
	return nil
}

// SkipFeedback dismisses the prompt for the rest of the session.
func (s *Session) SkipFeedback(ctx context.Context) error {
	if !s.feedbackEnabled() {
		return ErrFeedbackDisabled
	}
	if err := s.gate.Skip(); err != nil {
		return err
	}

	metrics.FeedbackTotal.WithLabelValues(string(feedback.OutcomeSkipped)).Inc()
	s.record(ctx, model.EventFeedbackSkipped, s.SessionID(), "")
	s.changed()
	return nil
}
