// Package events publishes widget lifecycle events. Publishing is
// best-effort: failures are logged and counted, never returned to the
// widget.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/internal/nats"
	"github.com/companin/widget/pkg/logger"
	"github.com/companin/widget/pkg/metrics"
)

// Publisher receives widget events.
type Publisher interface {
	Publish(ctx context.Context, event model.WidgetEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, model.WidgetEvent) {}

// NATSPublisher publishes events to the JetStream widget events stream.
type NATSPublisher struct {
	streams *nats.StreamManager
	logger  *logger.Logger
	timeout time.Duration
}

// NewNATSPublisher creates a NATSPublisher.
func NewNATSPublisher(streams *nats.StreamManager, log *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		streams: streams,
		logger:  log,
		timeout: 5 * time.Second,
	}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event model.WidgetEvent) {
	Stamp(&event, time.Now())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	seq, err := p.streams.PublishEvent(ctx, &event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		p.logger.Warn("failed to publish widget event",
			zap.String("type", string(event.Type)),
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
		return
	}

	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	p.logger.Debug("published widget event",
		zap.String("type", string(event.Type)),
		zap.Uint64("sequence", seq),
	)
}

// Stamp fills the event id and creation time when absent.
func Stamp(event *model.WidgetEvent, now time.Time) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now.UTC()
	}
}
