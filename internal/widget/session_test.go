package widget

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/companin/widget/internal/apiclient"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/internal/store"
	"github.com/companin/widget/pkg/logger"
)

type harness struct {
	api *fakeAPI
	mem *store.MemoryStore
	pub *recordingPublisher
	s   *Session
}

func defaultOptions() Options {
	return Options{
		ClientID:    "c1",
		AssistantID: "a1",
		ConfigID:    "cfg1",
		Locale:      "en",
	}
}

func newHarness(t *testing.T, opts Options, setup func(h *harness)) *harness {
	t.Helper()

	h := &harness{
		api: newFakeAPI(),
		mem: store.NewMemoryStore(),
		pub: &recordingPublisher{},
	}
	if setup != nil {
		setup(h)
	}

	s, err := New(opts, Deps{
		API:          h.api,
		Store:        h.mem,
		Publisher:    h.pub,
		Logger:       logger.NewNop(),
		TypingDelay:  10 * time.Millisecond,
		PollInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.s = s
	return h
}

func (h *harness) saveRecord(t *testing.T, sessionID string, expiresAt time.Time) {
	t.Helper()
	store.NewRecords(h.mem, logger.NewNop(), 0).
		SaveSession(context.Background(), "c1", "a1", sessionID, expiresAt)
}

func (h *harness) storedSession(t *testing.T) (string, bool) {
	t.Helper()
	rec, ok := store.NewRecords(h.mem, logger.NewNop(), 0).
		LoadSession(context.Background(), "c1", "a1")
	if !ok {
		return "", false
	}
	return rec.SessionID, true
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{AssistantID: "a1", ConfigID: "x"}, Deps{API: newFakeAPI(), Store: store.NewMemoryStore()})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = New(Options{ClientID: "c1", AssistantID: "a1"}, Deps{API: newFakeAPI(), Store: store.NewMemoryStore()})
	require.ErrorIs(t, err, ErrInvalidOptions, "session variant needs a config id")

	_, err = New(Options{ClientID: "c1", AssistantID: "a1", Variant: model.VariantConversation}, Deps{API: newFakeAPI(), Store: store.NewMemoryStore()})
	require.NoError(t, err)

	_, err = New(defaultOptions(), Deps{Store: store.NewMemoryStore()})
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestBootstrap_CreatesWhenNoRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)

	require.NoError(t, h.s.Bootstrap(ctx))

	require.Equal(t, []string{
		"POST /auth/widget-token",
		"POST /sessions/",
		"GET /sessions/S1/messages",
	}, h.api.Calls())
	require.Equal(t, Active("S1"), h.s.State())
	require.Equal(t, "S1", h.s.SessionID())

	id, ok := h.storedSession(t)
	require.True(t, ok)
	require.Equal(t, "S1", id)
	require.Contains(t, h.pub.Types(), model.EventSessionCreated)
}

func TestBootstrap_HidesGreetingUntilUserSpeaks(t *testing.T) {
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(context.Background()))

	require.Empty(t, h.s.Messages())
	h.s.SetCollapsed(false)
	v := h.s.View()
	require.Empty(t, v.Transcript)
	require.NotNil(t, v.Greeting)
	require.Equal(t, "Hello! How can I help you today?", v.Greeting.Text)

	require.NoError(t, h.s.SendText(context.Background(), "What are your hours?"))
	v = h.s.View()
	require.Nil(t, v.Greeting)
	require.NotEmpty(t, v.Transcript)
}

func TestBootstrap_ReusesValidRecord(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.saveRecord(t, "S-old", time.Now().Add(10*time.Minute))
		h.api.history["S-old"] = []model.APIMessage{
			{ID: "m1", Sender: model.SenderUser, Content: "hi", CreatedAt: time.Unix(10, 0)},
			{ID: "m2", Sender: model.SenderAssistant, Content: "hello", CreatedAt: time.Unix(11, 0)},
		}
	})

	require.NoError(t, h.s.Bootstrap(context.Background()))

	require.Equal(t, 0, h.api.count("POST /sessions/"))
	require.Equal(t, []string{
		"POST /auth/widget-token",
		"GET /sessions/S-old/messages",
		"GET /sessions/S-old/feedback",
	}, h.api.Calls())
	require.Equal(t, "S-old", h.s.SessionID())
	require.Len(t, h.s.Messages(), 2)
	require.Contains(t, h.pub.Types(), model.EventSessionRestored)
}

func TestBootstrap_PurgesRecordInsideSkew(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.saveRecord(t, "S-old", time.Now().Add(4*time.Minute))
	})

	require.NoError(t, h.s.Bootstrap(context.Background()))

	require.Equal(t, []string{
		"POST /auth/widget-token",
		"POST /sessions/",
		"GET /sessions/S1/messages",
	}, h.api.Calls())
	id, ok := h.storedSession(t)
	require.True(t, ok)
	require.Equal(t, "S1", id)
}

func TestBootstrap_FailedRestoreFallsBackToCreate(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.saveRecord(t, "S-old", time.Now().Add(time.Hour))
		h.api.listErr["S-old"] = &apiclient.APIError{Operation: "list messages", Status: 404, Detail: "Session not found"}
	})

	require.NoError(t, h.s.Bootstrap(context.Background()))

	require.Equal(t, []string{
		"POST /auth/widget-token",
		"GET /sessions/S-old/messages",
		"POST /sessions/",
		"GET /sessions/S1/messages",
	}, h.api.Calls())
	require.Equal(t, "S1", h.s.SessionID())
	id, _ := h.storedSession(t)
	require.Equal(t, "S1", id)
}

func TestBootstrap_RestoredFeedbackIsSubmitted(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.saveRecord(t, "S-old", time.Now().Add(time.Hour))
		h.api.hasFeedback = true
	})

	require.NoError(t, h.s.Bootstrap(context.Background()))
	require.True(t, h.s.FeedbackStatus().Submitted)
}

func TestBootstrap_Twice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	calls := h.api.Calls()

	require.ErrorIs(t, h.s.Bootstrap(ctx), ErrAlreadyStarted)
	require.NoError(t, h.s.EnsureStarted(ctx))
	require.Equal(t, calls, h.api.Calls())
}

func TestBootstrap_AuthFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.api.tokenErr = &apiclient.APIError{Operation: "get auth token", Status: 401, Detail: "Invalid client"}
	})

	err := h.s.Bootstrap(ctx)
	require.True(t, IsFailure(err, AuthFailure))
	require.Equal(t, PhaseFailed, h.s.State().Phase)
	require.Equal(t, "Invalid client", h.s.Banner())
	require.Equal(t, []string{"POST /auth/widget-token"}, h.api.Calls())

	require.ErrorIs(t, h.s.SendText(ctx, "hello"), ErrNoSession)
	require.ErrorIs(t, h.s.Bootstrap(ctx), ErrAlreadyStarted)
	require.Len(t, h.api.Calls(), 1)
}

func TestBootstrap_CreateFailure(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.api.createErr = errNetwork
	})

	err := h.s.Bootstrap(context.Background())
	require.True(t, IsFailure(err, SessionCreateFailure))
	require.ErrorIs(t, err, errNetwork)
	require.Equal(t, Failed("Failed to create session"), h.s.State())
	require.Equal(t, "Failed to create session", h.s.Banner())
}

func TestBootstrap_AppliesWidgetConfig(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.api.config = &model.WidgetConfig{
			PrimaryColor: "#ff0000",
			Title:        model.LocalizedText{"en": "Support"},
		}
	})
	require.NoError(t, h.s.Bootstrap(context.Background()))

	cfg := h.s.Config()
	require.Equal(t, "#ff0000", cfg.PrimaryColor)
	require.Equal(t, 400, cfg.WidgetWidth)

	h.s.SetCollapsed(false)
	v := h.s.View()
	require.Equal(t, "Support", v.Header.Title)
	require.Equal(t, "Ava", v.Header.AssistantName)
}

func TestBootstrap_ConfigFailureKeepsDefaults(t *testing.T) {
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.api.configErr = errNetwork
	})
	require.NoError(t, h.s.Bootstrap(context.Background()))
	require.Equal(t, model.DefaultWidgetConfig().PrimaryColor, h.s.Config().PrimaryColor)
	require.Empty(t, h.s.Banner())
}

func TestSendText_Success(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	before := len(h.api.Calls())

	h.s.SetInput("What are your hours?")
	require.NoError(t, h.s.Submit(ctx))

	require.Equal(t, []string{
		"POST /sessions/S1/messages",
		"GET /sessions/S1/messages",
	}, h.api.Calls()[before:])
	require.Equal(t, []model.SendMessageRequest{{Content: "What are your hours?", Locale: "en"}}, h.api.Sent())

	msgs := h.s.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "What are your hours?", msgs[1].Text)
	require.Equal(t, "We are open 9 to 5.", msgs[2].Text)
	for _, m := range msgs {
		require.False(t, m.Pending)
	}
	require.Empty(t, h.s.Input())
	require.False(t, h.s.Typing())
	require.Contains(t, h.pub.Types(), model.EventMessageSent)
}

func TestSendText_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	before := h.s.View().Transcript

	h.api.sendErr = &apiclient.APIError{Operation: "send message", Status: 500}
	h.s.SetInput("Hello")
	err := h.s.Submit(ctx)

	require.True(t, IsFailure(err, MessageSendFailure))
	require.Equal(t, before, h.s.View().Transcript)
	require.Equal(t, "Hello", h.s.Input())
	require.Equal(t, "Failed to send message", h.s.Banner())
	require.False(t, h.s.Typing())
	require.Contains(t, h.pub.Types(), model.EventMessageFailed)

	_, ok := h.storedSession(t)
	require.True(t, ok, "ordinary failures keep the stored session")
}

func TestSendText_ExpiredClearsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))

	h.api.sendErr = &apiclient.APIError{Operation: "send message", Status: 400, Detail: "Session has expired"}
	err := h.s.SendText(ctx, "Hello")
	require.Error(t, err)
	require.Equal(t, "Session has expired", h.s.Banner())

	_, ok := h.storedSession(t)
	require.False(t, ok)
}

func TestSendText_Guards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)

	require.ErrorIs(t, h.s.SendText(ctx, "   "), ErrEmptyMessage)
	require.Empty(t, h.s.Banner())
	require.ErrorIs(t, h.s.SendText(ctx, "hello"), ErrNoSession)
	require.Empty(t, h.api.Calls())
	require.Equal(t, noSessionBanner, h.s.Banner())
	require.Empty(t, h.s.Messages())
}

func TestLoadHistory_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	require.NoError(t, h.s.SendText(ctx, "hi"))

	require.NoError(t, h.s.LoadHistory(ctx))
	first := h.s.View().Transcript
	require.NoError(t, h.s.LoadHistory(ctx))
	require.Equal(t, first, h.s.View().Transcript)
}

func TestLoadHistory_FailureKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	require.NoError(t, h.s.SendText(ctx, "hi"))
	before := h.s.Messages()

	h.api.listErr["S1"] = errNetwork
	err := h.s.LoadHistory(ctx)
	require.True(t, IsFailure(err, HistoryLoadFailure))
	require.Equal(t, before, h.s.Messages())
	require.Empty(t, h.s.Banner())
}

func TestVisibleMessages(t *testing.T) {
	greeting := model.APIMessage{ID: "g", Sender: model.SenderAssistant, Content: "Hi"}
	user := model.APIMessage{ID: "u", Sender: model.SenderUser, Content: "Yo"}

	require.Empty(t, visibleMessages([]model.APIMessage{greeting}))
	got := visibleMessages([]model.APIMessage{greeting, user})
	require.Len(t, got, 2)
	require.Equal(t, "g", got[0].ID)
}

func TestCheckExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), nil)
	require.NoError(t, h.s.Bootstrap(ctx))
	require.NoError(t, h.s.SendText(ctx, "hi"))

	require.False(t, h.s.CheckExpiry(ctx))

	require.NoError(t, h.mem.Delete(ctx, store.SessionKey("c1", "a1")))
	require.True(t, h.s.CheckExpiry(ctx))
	require.Equal(t, Uninitialized(), h.s.State())
	require.Empty(t, h.s.Messages())
	require.Contains(t, h.pub.Types(), model.EventSessionExpired)

	require.NoError(t, h.s.EnsureStarted(ctx))
	require.Equal(t, 2, h.api.count("POST /sessions/"))
	require.Equal(t, "S1", h.s.SessionID())
}

func TestExpiryPoll(t *testing.T) {
	ctx := context.Background()
	h := &harness{api: newFakeAPI(), mem: store.NewMemoryStore(), pub: &recordingPublisher{}}
	s, err := New(defaultOptions(), Deps{
		API:          h.api,
		Store:        h.mem,
		Publisher:    h.pub,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Bootstrap(ctx))
	require.NoError(t, h.mem.Delete(ctx, store.SessionKey("c1", "a1")))

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseUninitialized
	}, time.Second, 5*time.Millisecond)
}

func TestCheckExpiry_IgnoresUnpersistedSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultOptions(), func(h *harness) {
		h.api.expiresAt = nil
	})
	require.NoError(t, h.s.Bootstrap(ctx))

	_, ok := h.storedSession(t)
	require.False(t, ok)
	require.False(t, h.s.CheckExpiry(ctx))
	require.Equal(t, "S1", h.s.SessionID())
}

func TestConversation_DiscoversMostRecent(t *testing.T) {
	opts := Options{ClientID: "c1", AssistantID: "a1", CustomerID: "cust1", Variant: model.VariantConversation}
	h := newHarness(t, opts, func(h *harness) {
		h.api.conversations = []model.Conversation{
			{ID: "C-old", AssistantID: "a1", CustomerID: "cust1", Status: "active", CreatedAt: time.Unix(100, 0)},
			{ID: "C-recent", AssistantID: "a1", CustomerID: "cust1", Status: "active", CreatedAt: time.Unix(200, 0)},
			{ID: "C-other", AssistantID: "a1", CustomerID: "cust2", Status: "active", CreatedAt: time.Unix(300, 0)},
			{ID: "C-closed", AssistantID: "a1", CustomerID: "cust1", Status: "closed", CreatedAt: time.Unix(400, 0)},
			{ID: "C-elsewhere", AssistantID: "a2", CustomerID: "cust1", Status: "active", CreatedAt: time.Unix(500, 0)},
		}
	})

	require.NoError(t, h.s.Bootstrap(context.Background()))

	require.Equal(t, []string{
		"POST /auth/widget-token",
		"GET /conversations/",
		"GET /conversations/C-recent/messages",
	}, h.api.Calls())
	require.Equal(t, "C-recent", h.s.SessionID())
	require.Contains(t, h.pub.Types(), model.EventSessionDiscovered)
}

func TestConversation_CreatesForCustomer(t *testing.T) {
	ctx := context.Background()
	opts := Options{ClientID: "c1", AssistantID: "a1", CustomerID: "cust1", Variant: model.VariantConversation}
	h := newHarness(t, opts, nil)

	require.NoError(t, h.s.Bootstrap(ctx))
	require.Equal(t, "C-new", h.s.SessionID())
	require.Equal(t, model.CreateConversationRequest{AssistantID: "a1", CustomerID: "cust1"}, h.api.convCreated)

	require.NoError(t, h.s.SendText(ctx, "hi"))
	require.Equal(t, 1, h.api.count("POST /conversations/C-new/messages"))

	require.ErrorIs(t, h.s.SubmitFeedback(ctx, "positive", ""), ErrFeedbackDisabled)
	require.False(t, h.s.CheckExpiry(ctx))
}

func TestConversation_VisitorIsCustomerByDefault(t *testing.T) {
	opts := Options{ClientID: "c1", AssistantID: "a1", Variant: model.VariantConversation}
	h := newHarness(t, opts, nil)

	require.NoError(t, h.s.Bootstrap(context.Background()))
	require.Regexp(t, `^widget-\d+-[0-9a-f]{9}$`, h.api.convCreated.CustomerID)
}

func TestStateTransitions(t *testing.T) {
	require.True(t, CanTransition(PhaseUninitialized, PhaseAuthenticating))
	require.True(t, CanTransition(PhaseAuthenticating, PhaseActive))
	require.True(t, CanTransition(PhaseRestoring, PhaseCreating))
	require.True(t, CanTransition(PhaseActive, PhaseUninitialized))
	require.False(t, CanTransition(PhaseUninitialized, PhaseActive))
	require.False(t, CanTransition(PhaseFailed, PhaseAuthenticating))
	require.False(t, CanTransition(PhaseCreating, PhaseRestoring))

	require.ErrorIs(t, validate(Active("")), ErrInvalidTransition)
	require.NoError(t, validate(Failed("boom")))

	raw, err := json.Marshal(Active("S1"))
	require.NoError(t, err)
	require.JSONEq(t, `{"phase":"active","session_id":"S1"}`, string(raw))
}

func TestParseSuggestions(t *testing.T) {
	require.Nil(t, ParseSuggestions(""))
	require.Equal(t, []string{"a", "b"}, ParseSuggestions(`["a", " ", "b"]`))
	require.Equal(t, []string{"How?", "Why?"}, ParseSuggestions("How? | Why?|"))
}

func TestDocsVariantDefaults(t *testing.T) {
	opts := defaultOptions()
	opts.Variant = model.VariantDocs
	h := newHarness(t, opts, nil)

	require.Equal(t, DefaultSuggestions, h.s.Options().Suggestions)
	require.True(t, h.s.Collapsed())
}
