// Package feedback implements the one-shot post-conversation rating prompt.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/companin/widget/pkg/logger"
)

// DefaultDelay is the inactivity window before the prompt opens.
const DefaultDelay = 30 * time.Second

// Rating is the visitor's verdict on the conversation.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNeutral  Rating = "neutral"
	RatingNegative Rating = "negative"
)

// ParseRating validates a rating string.
func ParseRating(s string) (Rating, error) {
	switch r := Rating(s); r {
	case RatingPositive, RatingNeutral, RatingNegative:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
}

// Outcome records how the prompt was closed.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeSkipped   Outcome = "skipped"
)

var (
	ErrInvalidRating    = errors.New("invalid rating")
	ErrAlreadySubmitted = errors.New("feedback already submitted")
)

// Poster delivers a rating to the backend.
type Poster interface {
	PostFeedback(ctx context.Context, rating Rating, comment string) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ctx context.Context, rating Rating, comment string) error

// PostFeedback implements Poster.
func (f PosterFunc) PostFeedback(ctx context.Context, rating Rating, comment string) error {
	return f(ctx, rating, comment)
}

// Probe reports whether a session exists and how many messages it has.
type Probe func() (hasSession bool, messageCount int)

// Status is a snapshot of the gate.
type Status struct {
	Open      bool    `json:"open"`
	Submitted bool    `json:"submitted"`
	Skipped   bool    `json:"skipped"`
	Outcome   Outcome `json:"outcome,omitempty"`
}

// Gate opens the rating prompt at most once per session, after Delay
// without transcript changes.
type Gate struct {
	delay  time.Duration
	probe  Probe
	onOpen func()
	logger *logger.Logger

	mu        sync.Mutex
	timer     *time.Timer
	open      bool
	submitted bool
	skipped   bool
	stopped   bool
}

// NewGate creates a Gate. onOpen may be nil.
func NewGate(delay time.Duration, probe Probe, onOpen func(), log *logger.Logger) *Gate {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Gate{
		delay:  delay,
		probe:  probe,
		onOpen: onOpen,
		logger: log,
	}
}

// Eligible reports whether the prompt may open for the given session state.
func (g *Gate) Eligible(hasSession bool, messageCount int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eligibleLocked(hasSession, messageCount)
}

func (g *Gate) eligibleLocked(hasSession bool, messageCount int) bool {
	return hasSession && messageCount > 0 && !g.submitted && !g.open && !g.stopped
}

// Touch restarts the inactivity window. Call it whenever the transcript
// changes.
func (g *Gate) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitted || g.stopped {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.delay, g.fire)
}

func (g *Gate) fire() {
	hasSession, count := false, 0
	if g.probe != nil {
		hasSession, count = g.probe()
	}

	g.mu.Lock()
	if !g.eligibleLocked(hasSession, count) {
		g.mu.Unlock()
		return
	}
	g.open = true
	onOpen := g.onOpen
	g.mu.Unlock()

	g.logger.Debug("feedback prompt opened", zap.Int("messages", count))
	if onOpen != nil {
		onOpen()
	}
}

// Submit posts the rating. The prompt closes and the gate is marked
// submitted whatever the outcome of the post.
func (g *Gate) Submit(ctx context.Context, poster Poster, rating Rating, comment string) error {
	if _, err := ParseRating(string(rating)); err != nil {
		return err
	}

	g.mu.Lock()
	if g.submitted {
		g.mu.Unlock()
		return ErrAlreadySubmitted
	}
	g.submitted = true
	g.open = false
	g.stopTimerLocked()
	g.mu.Unlock()

	if poster == nil {
		return nil
	}
	if err := poster.PostFeedback(ctx, rating, comment); err != nil {
		g.logger.Warn("failed to submit feedback", zap.String("rating", string(rating)), zap.Error(err))
	}
	return nil
}

// Skip closes the prompt without a rating. It will not open again.
func (g *Gate) Skip() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitted {
		return ErrAlreadySubmitted
	}
	g.submitted = true
	g.skipped = true
	g.open = false
	g.stopTimerLocked()
	return nil
}

// MarkSubmitted records feedback given in an earlier page load.
func (g *Gate) MarkSubmitted() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted = true
	g.open = false
	g.stopTimerLocked()
}

// Reset forgets the gate state for a new session.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.open = false
	g.submitted = false
	g.skipped = false
}

// Stop cancels the timer. The gate never opens afterwards.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	g.stopTimerLocked()
}

// Status returns a snapshot of the gate.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Status{Open: g.open, Submitted: g.submitted, Skipped: g.skipped}
	switch {
	case g.skipped:
		s.Outcome = OutcomeSkipped
	case g.submitted:
		s.Outcome = OutcomeSubmitted
	}
	return s
}

func (g *Gate) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
