package widget

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/pkg/metrics"
)

// startExpiryPoll watches the stored session record while the session is
// active. Sessions without a stored record are not polled.
func (s *Session) startExpiryPoll() {
	s.mu.Lock()
	if s.closed || s.cancelPoll != nil || s.state.Phase != PhaseActive || !s.persisted {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelPoll, s.pollDone = cancel, done
	interval := s.pollInterval
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckExpiry(ctx)
			}
		}
	}()
}

// CheckExpiry resets the session when its stored record has disappeared or
// expired. It reports whether the session was reset.
func (s *Session) CheckExpiry(ctx context.Context) bool {
	s.mu.Lock()
	id, persisted := "", s.persisted
	if s.state.Phase == PhaseActive {
		id = s.state.SessionID
	}
	s.mu.Unlock()
	if id == "" || !persisted {
		return false
	}
	if rec, ok := s.records.LoadSession(ctx, s.opts.ClientID, s.opts.AssistantID); ok && rec.SessionID == id {
		return false
	}

	s.mu.Lock()
	if s.state.Phase != PhaseActive || s.state.SessionID != id {
		s.mu.Unlock()
		return false
	}
	if err := s.transitionLocked(Uninitialized()); err != nil {
		s.mu.Unlock()
		s.logger.Error("cannot reset expired session", zap.Error(err))
		return false
	}
	s.token = ""
	s.persisted = false
	s.messages = nil
	s.flowResponses = nil
	cancel := s.cancelPoll
	s.cancelPoll, s.pollDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.gate.Reset()

	metrics.SessionsTotal.WithLabelValues(string(s.opts.Variant), "expired").Inc()
	s.record(ctx, model.EventSessionExpired, id, "stored session record expired")
	s.logger.Info("session expired", zap.String("session_id", id))
	s.changed()
	return true
}
