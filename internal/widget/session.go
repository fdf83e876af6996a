// Package widget runs the lifecycle of one embedded chat widget: bootstrap,
// history, sending, scripted flows, feedback and session expiry.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/companin/widget/internal/events"
	"github.com/companin/widget/internal/feedback"
	"github.com/companin/widget/internal/flow"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/internal/store"
	"github.com/companin/widget/pkg/logger"
	"github.com/companin/widget/pkg/metrics"
)

const (
	DefaultTypingDelay  = 300 * time.Millisecond
	DefaultPollInterval = time.Minute
)

// DefaultSuggestions are offered by the docs variant when the embed does
// not configure its own.
var DefaultSuggestions = []string{
	"How do I get started?",
	"What are the main features?",
	"Show me code examples",
	"Explain the API",
	"What are best practices?",
	"How do I troubleshoot issues?",
}

// Options identify one embedded widget instance.
type Options struct {
	ClientID    string
	AssistantID string
	ConfigID    string
	CustomerID  string
	Locale      string
	StartOpen   bool
	Variant     model.Variant
	Mobile      bool
	Suggestions []string
}

// Validate checks the identifiers the variant needs.
func (o Options) Validate() error {
	switch {
	case o.ClientID == "":
		return fmt.Errorf("%w: client id is required", ErrInvalidOptions)
	case o.AssistantID == "":
		return fmt.Errorf("%w: assistant id is required", ErrInvalidOptions)
	case o.ConfigID == "" && o.Variant.RequiresConfigID():
		return fmt.Errorf("%w: config id is required for the %s variant", ErrInvalidOptions, o.Variant)
	}
	return nil
}

// ParseSuggestions reads the suggestions embed parameter: a JSON array of
// strings, or a "|" separated list.
func ParseSuggestions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var list []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &list) == nil {
		return compact(list)
	}
	return compact(strings.Split(raw, "|"))
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Deps are the collaborators and timings of a Session.
type Deps struct {
	API       API
	Store     store.Store
	Publisher events.Publisher
	Logger    *logger.Logger

	Now           func() time.Time
	TypingDelay   time.Duration
	PollInterval  time.Duration
	FeedbackDelay time.Duration
	ExpirySkew    time.Duration

	// OnChange is called after every observable state change, outside
	// any lock.
	OnChange func()
}

// Session is the server-side state of one widget instance. All methods are
// safe for concurrent use; network calls never run under the lock.
type Session struct {
	opts      Options
	api       API
	records   *store.Records
	publisher events.Publisher
	logger    *logger.Logger
	now       func() time.Time
	onChange  func()

	typingDelay  time.Duration
	pollInterval time.Duration

	clicked *flow.ClickedSet
	gate    *feedback.Gate

	mu            sync.Mutex
	state         State
	token         string
	config        model.WidgetConfig
	engine        *flow.Engine
	assistantName string
	messages      []model.Message
	flowResponses []flow.FlowResponse
	input         string
	typing        int
	banner        string
	collapsed     bool
	userToggled   bool
	persisted     bool
	cancelPoll    context.CancelFunc
	pollDone      chan struct{}
	closed        bool
}

// New creates a Session in the Uninitialized state.
func New(opts Options, deps Deps) (*Session, error) {
	if opts.Variant == "" {
		opts.Variant = model.VariantSession
	}
	if opts.Locale == "" {
		opts.Locale = flow.FallbackLanguage
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.API == nil || deps.Store == nil {
		return nil, fmt.Errorf("%w: API and store are required", ErrInvalidOptions)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TypingDelay <= 0 {
		deps.TypingDelay = DefaultTypingDelay
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if opts.Variant == model.VariantDocs && len(opts.Suggestions) == 0 {
		opts.Suggestions = DefaultSuggestions
	}

	log := deps.Logger.WithWidget(opts.ClientID, opts.AssistantID).
		With(zap.String("variant", string(opts.Variant)))

	records := store.NewRecords(deps.Store, log, deps.ExpirySkew)
	records.Now = deps.Now

	cfg := model.DefaultWidgetConfig()
	s := &Session{
		opts:         opts,
		api:          deps.API,
		records:      records,
		publisher:    deps.Publisher,
		logger:       log,
		now:          deps.Now,
		onChange:     deps.OnChange,
		typingDelay:  deps.TypingDelay,
		pollInterval: deps.PollInterval,
		clicked:      flow.NewClickedSet(),
		state:        Uninitialized(),
		config:       cfg,
		engine:       newEngine(cfg, opts.Locale, deps.Now),
		collapsed:    initialCollapsed(opts, cfg),
	}
	s.gate = feedback.NewGate(deps.FeedbackDelay, s.feedbackProbe, s.changed, log)
	return s, nil
}

func newEngine(cfg model.WidgetConfig, locale string, now func() time.Time) *flow.Engine {
	e := flow.NewEngine(&cfg, locale)
	e.Now = now
	return e
}

// Options returns the options the session was created with.
func (s *Session) Options() Options { return s.opts }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the active session id, or "".
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseActive {
		return ""
	}
	return s.state.SessionID
}

// Messages returns a copy of the transcript messages.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// FlowResponses returns a copy of the scripted responses.
func (s *Session) FlowResponses() []flow.FlowResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flow.FlowResponse(nil), s.flowResponses...)
}

// Input returns the composer text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput replaces the composer text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Banner returns the visible error text, or "".
func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// Typing reports whether the typing indicator is on.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing > 0
}

// Config returns the effective widget config.
func (s *Session) Config() model.WidgetConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// transition moves to next if the transition table allows it. The caller
// holds s.mu.
func (s *Session) transitionLocked(next State) error {
	if err := validate(next); err != nil {
		return err
	}
	if !CanTransition(s.state.Phase, next.Phase) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	s.logger.Debug("session state changed",
		zap.Stringer("from", s.state),
		zap.Stringer("to", next),
	)
	s.state = next
	return nil
}

func (s *Session) transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(next)
}

// EnsureStarted bootstraps the session if it has not started or has been
// reset by expiry.
func (s *Session) EnsureStarted(ctx context.Context) error {
	if s.State().Phase != PhaseUninitialized {
		return nil
	}
	err := s.Bootstrap(ctx)
	if errors.Is(err, ErrAlreadyStarted) {
		return nil
	}
	return err
}

// Bootstrap authenticates, loads the widget appearance and obtains a
// session by restoring, discovering or creating one. It may only run from
// Uninitialized.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Phase != PhaseUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := s.transitionLocked(Authenticating()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.changed()

	token, err := s.api.GetAuthToken(ctx, s.opts.ClientID)
	if err != nil {
		return s.fail(newFailure(AuthFailure, "Failed to authenticate", err))
	}

	s.mu.Lock()
	s.token = token
	s.banner = ""
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.loadAppearance(gctx, token)
		return nil
	})
	g.Go(func() error {
		return s.initSession(gctx, token)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.startExpiryPoll()
	s.changed()
	return nil
}

// loadAppearance fetches the assistant name and widget config. Both are
// best-effort; the built-in defaults stay in place on failure.
func (s *Session) loadAppearance(ctx context.Context, token string) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a, err := s.api.GetAssistant(ctx, token, s.opts.AssistantID)
		if err != nil {
			s.logger.Warn("failed to load assistant", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.assistantName = a.Name
		s.mu.Unlock()
	}()

	if s.opts.ConfigID != "" {
		cfg, err := s.api.GetWidgetConfig(ctx, token, s.opts.ConfigID)
		if err != nil {
			f := newFailure(ConfigFetchFailure, "Failed to load widget config", err)
			s.logger.Warn("using default widget config", zap.Error(f))
		} else {
			s.applyConfig(*cfg)
		}
	}
	wg.Wait()
}

func (s *Session) applyConfig(cfg model.WidgetConfig) {
	effective := cfg.WithDefaults()

	s.mu.Lock()
	s.config = effective
	s.engine = newEngine(effective, s.opts.Locale, s.now)
	if !s.userToggled {
		s.collapsed = initialCollapsed(s.opts, effective)
	}
	s.mu.Unlock()
}

// initSession runs the restore, discovery and create paths in order.
func (s *Session) initSession(ctx context.Context, token string) error {
	if s.opts.Variant == model.VariantConversation {
		if ok := s.discover(ctx, token); ok {
			return nil
		}
		return s.create(ctx, token)
	}

	if ok := s.restore(ctx, token); ok {
		return nil
	}
	return s.create(ctx, token)
}

// restore adopts the stored session when its history loads.
func (s *Session) restore(ctx context.Context, token string) bool {
	rec, ok := s.records.LoadSession(ctx, s.opts.ClientID, s.opts.AssistantID)
	if !ok {
		return false
	}

	if err := s.transition(Restoring(rec.SessionID)); err != nil {
		s.logger.Error("cannot restore session", zap.Error(err))
		return false
	}

	history, err := s.listMessages(ctx, token, rec.SessionID)
	if err != nil {
		s.logger.Info("stored session could not be restored",
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
		s.records.ClearSession(ctx, s.opts.ClientID, s.opts.AssistantID)
		return false
	}

	if err := s.activate(rec.SessionID, history, "restored"); err != nil {
		s.logger.Error("cannot activate restored session", zap.Error(err))
		return false
	}
	s.setPersisted(true)
	s.loadFeedbackStatus(ctx, token, rec.SessionID)
	s.record(ctx, model.EventSessionRestored, rec.SessionID, "")
	return true
}

// discover adopts the most recent active conversation of this customer.
func (s *Session) discover(ctx context.Context, token string) bool {
	conversations, err := s.api.ListConversations(ctx, token)
	if err != nil {
		s.logger.Warn("failed to list conversations", zap.Error(err))
		return false
	}

	customer := s.customerID(ctx)
	var candidates []model.Conversation
	for _, c := range conversations {
		if c.CustomerID == customer && c.AssistantID == s.opts.AssistantID && c.Status == model.ConversationStatusActive {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	id := candidates[0].ID

	history, err := s.listMessages(ctx, token, id)
	if err != nil {
		f := newFailure(HistoryLoadFailure, "Failed to load messages", err)
		s.logger.Warn("failed to load discovered conversation history", zap.Error(f))
		history = nil
	}
	if err := s.activate(id, history, "discovered"); err != nil {
		s.logger.Error("cannot activate discovered conversation", zap.Error(err))
		return false
	}
	s.record(ctx, model.EventSessionDiscovered, id, "")
	return true
}

// create opens a new session or conversation and loads its history.
func (s *Session) create(ctx context.Context, token string) error {
	if err := s.transition(Creating()); err != nil {
		return err
	}

	var (
		id        string
		expiresAt *time.Time
	)
	if s.opts.Variant == model.VariantConversation {
		conv, err := s.api.CreateConversation(ctx, token, model.CreateConversationRequest{
			AssistantID: s.opts.AssistantID,
			CustomerID:  s.customerID(ctx),
		})
		if err != nil {
			return s.fail(newFailure(SessionCreateFailure, "Failed to create conversation", err))
		}
		id = conv.ID
	} else {
		resp, err := s.api.CreateSession(ctx, token, model.CreateSessionRequest{
			AssistantID: s.opts.AssistantID,
			VisitorID:   s.records.VisitorID(ctx, s.opts.ClientID),
			Locale:      s.opts.Locale,
		})
		if err != nil {
			return s.fail(newFailure(SessionCreateFailure, "Failed to create session", err))
		}
		id, expiresAt = resp.SessionID, resp.ExpiresAt
	}

	if expiresAt != nil {
		s.records.SaveSession(ctx, s.opts.ClientID, s.opts.AssistantID, id, *expiresAt)
	}

	if err := s.activate(id, nil, "created"); err != nil {
		return err
	}
	s.setPersisted(expiresAt != nil)
	s.record(ctx, model.EventSessionCreated, id, "")

	if err := s.LoadHistory(ctx); err != nil {
		s.logger.Warn("failed to load new session history", zap.Error(err))
	}
	return nil
}

// activate moves to Active and installs history, if any.
func (s *Session) activate(id string, history []model.APIMessage, origin string) error {
	s.mu.Lock()
	if err := s.transitionLocked(Active(id)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.banner = ""
	if history != nil {
		s.replaceHistoryLocked(history)
	}
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues(string(s.opts.Variant), origin).Inc()
	s.gate.Touch()
	return nil
}

func (s *Session) setPersisted(v bool) {
	s.mu.Lock()
	s.persisted = v
	s.mu.Unlock()
}

// customerID is the configured customer id, or the visitor id.
func (s *Session) customerID(ctx context.Context) string {
	if s.opts.CustomerID != "" {
		return s.opts.CustomerID
	}
	return s.records.VisitorID(ctx, s.opts.ClientID)
}

// fail moves to Failed, shows the banner and returns f.
func (s *Session) fail(f *Failure) error {
	s.mu.Lock()
	if err := s.transitionLocked(Failed(f.Message)); err != nil {
		s.logger.Error("cannot record failure", zap.Error(err))
	}
	s.banner = f.Message
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues(string(s.opts.Variant), "failed").Inc()
	s.logger.Error("widget bootstrap failed", zap.String("kind", string(f.Kind)), zap.Error(f.Err))
	s.changed()
	return f
}

// currentSession returns the active session id and token, or ErrNoSession.
func (s *Session) currentSession() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseActive || s.token == "" {
		return "", "", ErrNoSession
	}
	return s.state.SessionID, s.token, nil
}

// beginTyping turns the typing indicator on. The returned func turns it off.
func (s *Session) beginTyping() func() {
	s.mu.Lock()
	s.typing++
	s.mu.Unlock()
	s.changed()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.typing--
			s.mu.Unlock()
			s.changed()
		})
	}
}

func (s *Session) record(ctx context.Context, t model.EventType, sessionID, reason string) {
	s.publisher.Publish(ctx, model.WidgetEvent{
		Type:        t,
		ClientID:    s.opts.ClientID,
		AssistantID: s.opts.AssistantID,
		SessionID:   sessionID,
		Variant:     string(s.opts.Variant),
		Reason:      reason,
	})
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Close stops the timers. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancelPoll, s.pollDone
	s.cancelPoll, s.pollDone = nil, nil
	s.mu.Unlock()

	s.gate.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
}
