// Package service keeps the widget instances served by this process.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/events"
	"github.com/companin/widget/internal/store"
	"github.com/companin/widget/internal/widget"
	"github.com/companin/widget/pkg/logger"
	"github.com/companin/widget/pkg/metrics"
)

// DefaultIdleTimeout is how long an untouched instance is kept.
const DefaultIdleTimeout = 30 * time.Minute

// ErrInstanceNotFound is returned for unknown, evicted or foreign instances.
var ErrInstanceNotFound = errors.New("widget instance not found")

// Config holds the timings handed to every widget session.
type Config struct {
	IdleTimeout   time.Duration
	TypingDelay   time.Duration
	PollInterval  time.Duration
	FeedbackDelay time.Duration
	ExpirySkew    time.Duration
}

// Instance is one embedded widget: a browser tab showing the iframe.
type Instance struct {
	ID        string
	Namespace string
	Session   *widget.Session
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	watchers map[chan struct{}]struct{}
	done     chan struct{}
}

// Watch returns a channel that receives after the instance state changes.
// Bursts of changes may be coalesced. Call cancel to stop watching.
func (i *Instance) Watch() (changes <-chan struct{}, cancel func()) {
	ch := make(chan struct{}, 1)
	i.mu.Lock()
	i.watchers[ch] = struct{}{}
	i.mu.Unlock()

	return ch, func() {
		i.mu.Lock()
		delete(i.watchers, ch)
		i.mu.Unlock()
	}
}

// Done is closed when the instance is released.
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

func (i *Instance) notify() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for ch := range i.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (i *Instance) touch(now time.Time) {
	i.mu.Lock()
	i.lastSeen = now
	i.mu.Unlock()
}

// LastSeen returns when the instance was last used.
func (i *Instance) LastSeen() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSeen
}

// InstanceService creates, finds and evicts widget instances. Each browser
// gets its own view of the store, keyed by its visitor namespace, so that
// stored sessions behave like per-browser local storage.
type InstanceService struct {
	api       widget.API
	store     store.Store
	publisher events.Publisher
	logger    *logger.Logger
	cfg       Config

	// Now is the clock used for idle tracking.
	Now func() time.Time

	instances map[string]*Instance
	mu        sync.RWMutex
}

// NewInstanceService creates a new instance service.
func NewInstanceService(api widget.API, st store.Store, pub events.Publisher, cfg Config, log *logger.Logger) *InstanceService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &InstanceService{
		api:       api,
		store:     st,
		publisher: pub,
		logger:    log,
		cfg:       cfg,
		Now:       time.Now,
		instances: make(map[string]*Instance),
	}
}

// Create registers a new instance for the browser namespace and runs its
// bootstrap. A failed bootstrap still yields an instance; its view carries
// the error banner.
func (s *InstanceService) Create(ctx context.Context, namespace string, opts widget.Options) (*Instance, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: visitor namespace is required", widget.ErrInvalidOptions)
	}

	now := s.Now()
	inst := &Instance{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Namespace: namespace,
		CreatedAt: now,
		lastSeen:  now,
		watchers:  make(map[chan struct{}]struct{}),
		done:      make(chan struct{}),
	}

	sess, err := widget.New(opts, widget.Deps{
		API:           s.api,
		Store:         store.Scoped(s.store, namespace),
		Publisher:     s.publisher,
		Logger:        s.logger,
		TypingDelay:   s.cfg.TypingDelay,
		PollInterval:  s.cfg.PollInterval,
		FeedbackDelay: s.cfg.FeedbackDelay,
		ExpirySkew:    s.cfg.ExpirySkew,
		OnChange:      inst.notify,
	})
	if err != nil {
		return nil, err
	}
	inst.Session = sess

	s.mu.Lock()
	s.instances[inst.ID] = inst
	s.mu.Unlock()
	metrics.IncrementInstances()

	s.logger.Info("widget instance created",
		zap.String("instance_id", inst.ID),
		zap.String("client_id", opts.ClientID),
		zap.String("assistant_id", opts.AssistantID),
		zap.String("variant", string(sess.Options().Variant)),
	)

	if err := sess.Bootstrap(ctx); err != nil {
		s.logger.Warn("widget bootstrap failed",
			zap.String("instance_id", inst.ID),
			zap.Error(err),
		)
	}
	return inst, nil
}

// Get returns the instance if it belongs to namespace.
func (s *InstanceService) Get(id, namespace string) (*Instance, error) {
	s.mu.RLock()
	inst, exists := s.instances[id]
	s.mu.RUnlock()

	if !exists || inst.Namespace != namespace {
		return nil, ErrInstanceNotFound
	}
	inst.touch(s.Now())
	return inst, nil
}

// Close stops and forgets an instance.
func (s *InstanceService) Close(id, namespace string) error {
	s.mu.Lock()
	inst, exists := s.instances[id]
	if !exists || inst.Namespace != namespace {
		s.mu.Unlock()
		return ErrInstanceNotFound
	}
	delete(s.instances, id)
	s.mu.Unlock()

	s.release(inst, "closed")
	return nil
}

// Len returns the number of live instances.
func (s *InstanceService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// Sweep evicts instances idle for longer than the idle timeout and returns
// how many were evicted.
func (s *InstanceService) Sweep() int {
	cutoff := s.Now().Add(-s.cfg.IdleTimeout)

	var idle []*Instance
	s.mu.Lock()
	for id, inst := range s.instances {
		if inst.LastSeen().Before(cutoff) {
			idle = append(idle, inst)
			delete(s.instances, id)
		}
	}
	s.mu.Unlock()

	for _, inst := range idle {
		s.release(inst, "idle")
	}
	return len(idle)
}

// Run sweeps idle instances until ctx is done, then closes every instance.
func (s *InstanceService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("evicted idle widget instances", zap.Int("count", n))
			}
			s.pruneStore()
		}
	}
}

// pruneStore drops expired entries from stores that do not expire keys
// themselves.
func (s *InstanceService) pruneStore() {
	p, ok := s.store.(interface{ Prune() int })
	if !ok {
		return
	}
	if n := p.Prune(); n > 0 {
		s.logger.Debug("pruned expired store entries", zap.Int("count", n))
	}
}

// Shutdown closes every instance.
func (s *InstanceService) Shutdown() {
	s.mu.Lock()
	all := make([]*Instance, 0, len(s.instances))
	for id, inst := range s.instances {
		all = append(all, inst)
		delete(s.instances, id)
	}
	s.mu.Unlock()

	for _, inst := range all {
		s.release(inst, "shutdown")
	}
}

func (s *InstanceService) release(inst *Instance, reason string) {
	inst.Session.Close()
	close(inst.done)
	metrics.DecrementInstances()
	s.logger.Debug("widget instance released",
		zap.String("instance_id", inst.ID),
		zap.String("reason", reason),
	)
}
