package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/companin/widget/internal/apiclient"
	"github.com/companin/widget/internal/model"
)

var errNetwork = errors.New("connection refused")

// fakeAPI is an in-memory Companin API that records every call.
type fakeAPI struct {
	mu sync.Mutex

	calls []string

	token    string
	tokenErr error

	sessionID  string
	expiresAt  *time.Time
	createErr  error
	history    map[string][]model.APIMessage
	listErr    map[string]error
	sendErr    error
	sent       []model.SendMessageRequest
	replyText  string
	clock      time.Time
	nextMsgSeq int

	conversations []model.Conversation
	convCreated   model.CreateConversationRequest

	assistant *model.Assistant
	config    *model.WidgetConfig
	configErr error

	hasFeedback bool
	feedback    []model.FeedbackRequest
	feedbackErr error
}

func newFakeAPI() *fakeAPI {
	expires := time.Now().Add(24 * time.Hour)
	return &fakeAPI{
		token:     "T1",
		sessionID: "S1",
		expiresAt: &expires,
		history: map[string][]model.APIMessage{
			"S1": {{ID: "g1", Sender: model.SenderAssistant, Content: "Hello! How can I help?", CreatedAt: time.Unix(1000, 0)}},
		},
		listErr:   map[string]error{},
		replyText: "We are open 9 to 5.",
		clock:     time.Unix(2000, 0),
		assistant: &model.Assistant{Name: "Ava"},
	}
}

func (f *fakeAPI) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) GetAuthToken(_ context.Context, clientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /auth/widget-token")
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

func (f *fakeAPI) CreateSession(_ context.Context, token string, req model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /sessions/")
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.CreateSessionResponse{SessionID: f.sessionID, ExpiresAt: f.expiresAt}, nil
}

func (f *fakeAPI) ListSessionMessages(_ context.Context, token, sessionID string) ([]model.APIMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET /sessions/%s/messages", sessionID)
	if err := f.listErr[sessionID]; err != nil {
		return nil, err
	}
	return append([]model.APIMessage(nil), f.history[sessionID]...), nil
}

func (f *fakeAPI) SendSessionMessage(_ context.Context, token, sessionID string, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /sessions/%s/messages", sessionID)
	return f.send(sessionID, req)
}

func (f *fakeAPI) send(id string, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMsgSeq++
	f.clock = f.clock.Add(time.Second)
	f.history[id] = append(f.history[id],
		model.APIMessage{ID: fmt.Sprintf("u%d", f.nextMsgSeq), Sender: model.SenderUser, Content: req.Content, CreatedAt: f.clock},
		model.APIMessage{ID: fmt.Sprintf("a%d", f.nextMsgSeq), Sender: model.SenderAssistant, Content: f.replyText, CreatedAt: f.clock.Add(time.Millisecond)},
	)
	return &model.SendMessageResponse{AssistantMessage: &model.AssistantReply{Content: f.replyText}}, nil
}

func (f *fakeAPI) CreateConversation(_ context.Context, token string, req model.CreateConversationRequest) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /conversations/")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.convCreated = req
	return &model.Conversation{ID: "C-new", AssistantID: req.AssistantID, CustomerID: req.CustomerID, Status: model.ConversationStatusActive}, nil
}

func (f *fakeAPI) ListConversations(_ context.Context, token string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET /conversations/")
	return append([]model.Conversation(nil), f.conversations...), nil
}

func (f *fakeAPI) ListConversationMessages(_ context.Context, token, id string) ([]model.APIMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET /conversations/%s/messages", id)
	if err := f.listErr[id]; err != nil {
		return nil, err
	}
	return append([]model.APIMessage(nil), f.history[id]...), nil
}

func (f *fakeAPI) SendConversationMessage(_ context.Context, token, id string, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /conversations/%s/messages", id)
	return f.send(id, req)
}

func (f *fakeAPI) GetAssistant(_ context.Context, token, assistantID string) (*model.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assistant == nil {
		return nil, &apiclient.APIError{Operation: "get assistant", Status: 404}
	}
	return f.assistant, nil
}

func (f *fakeAPI) GetWidgetConfig(_ context.Context, token, configID string) (*model.WidgetConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return nil, f.configErr
	}
	if f.config == nil {
		return nil, &apiclient.APIError{Operation: "get widget config", Status: 404}
	}
	cfg := *f.config
	return &cfg, nil
}

func (f *fakeAPI) SubmitFeedback(_ context.Context, token, sessionID string, req model.FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST /sessions/%s/feedback", sessionID)
	f.feedback = append(f.feedback, req)
	return f.feedbackErr
}

func (f *fakeAPI) GetFeedbackStatus(_ context.Context, token, sessionID string) (*model.FeedbackStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET /sessions/%s/feedback", sessionID)
	return &model.FeedbackStatus{HasFeedback: f.hasFeedback}, nil
}

func (f *fakeAPI) Sent() []model.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SendMessageRequest(nil), f.sent...)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.WidgetEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.WidgetEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
