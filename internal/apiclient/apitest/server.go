// Package apitest provides an in-process fake of the Companin API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/companin/widget/internal/apiclient"
	"github.com/companin/widget/internal/model"
)

// Token is the bearer token the fake issues for every client id except
// RejectedClient.
const (
	Token          = "fake-token"
	RejectedClient = "rejected"
	Reply          = "Thanks for your message!"
)

// Server is a fake Companin API. Sessions it creates expire a day after
// creation.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []string
	sessions map[string][]model.APIMessage
	feedback map[string]model.FeedbackRequest
	configs  map[string]model.WidgetConfig
	seq      int
}

// NewServer starts a fake API that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		sessions: make(map[string][]model.APIMessage),
		feedback: make(map[string]model.FeedbackRequest),
		configs:  make(map[string]model.WidgetConfig),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/widget-token", s.authToken)
		r.Group(func(r chi.Router) {
			r.Use(requireToken)
			r.Post("/sessions/", s.createSession)
			r.Get("/sessions/{id}/messages", s.listMessages)
			r.Post("/sessions/{id}/messages", s.sendMessage)
			r.Post("/sessions/{id}/feedback", s.submitFeedback)
			r.Get("/sessions/{id}/feedback", s.feedbackStatus)
			r.Get("/assistants/{id}", s.assistant)
		})
	})
	r.With(requireToken).Get("/widget-config/{id}", s.widgetConfig)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Client returns an API client pointed at the fake.
func (s *Server) Client(t testing.TB) *apiclient.Client {
	t.Helper()
	c, err := apiclient.New(apiclient.Config{BaseURL: s.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to create API client: %v", err)
	}
	return c
}

// SetConfig installs a widget config under id.
func (s *Server) SetConfig(id string, cfg model.WidgetConfig) {
	s.mu.Lock()
	s.configs[id] = cfg
	s.mu.Unlock()
}

// Calls returns "METHOD path" for every request received.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Count returns how many requests matched call exactly.
func (s *Server) Count(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Feedback returns the feedback posted for a session.
func (s *Server) Feedback(sessionID string) (model.FeedbackRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedback[sessionID]
	return f, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "client_id is required"}},
		})
		return
	}
	if req.ClientID == RejectedClient {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid client id"})
		return
	}
	writeJSON(w, http.StatusOK, model.AuthTokenResponse{Token: Token})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("S%d", s.seq)
	s.sessions[id] = []model.APIMessage{{
		ID:        id + "-greeting",
		Sender:    model.SenderAssistant,
		Content:   "Hello! How can I help?",
		CreatedAt: time.Now(),
	}}
	s.mu.Unlock()

	expires := time.Now().Add(24 * time.Hour)
	success(w, model.CreateSessionResponse{SessionID: id, ExpiresAt: &expires})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	msgs, ok := s.sessions[id]
	msgs = append([]model.APIMessage(nil), msgs...)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found"})
		return
	}
	success(w, model.ListMessagesResponse{Messages: msgs})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "content is required"})
		return
	}

	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		now := time.Now()
		s.seq++
		s.sessions[id] = append(s.sessions[id],
			model.APIMessage{ID: fmt.Sprintf("u%d", s.seq), Sender: model.SenderUser, Content: req.Content, CreatedAt: now},
			model.APIMessage{ID: fmt.Sprintf("a%d", s.seq), Sender: model.SenderAssistant, Content: Reply, CreatedAt: now.Add(time.Millisecond)},
		)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session expired"})
		return
	}
	success(w, model.SendMessageResponse{AssistantMessage: &model.AssistantReply{Content: Reply}})
}

func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	s.mu.Lock()
	s.feedback[chi.URLParam(r, "id")] = req
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) feedbackStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, ok := s.feedback[chi.URLParam(r, "id")]
	s.mu.Unlock()
	success(w, model.FeedbackStatus{HasFeedback: ok})
}

func (s *Server) assistant(w http.ResponseWriter, r *http.Request) {
	success(w, model.Assistant{Name: "Ava"})
}

func (s *Server) widgetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg, ok := s.configs[chi.URLParam(r, "id")]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Widget config not found"})
		return
	}
	success(w, cfg)
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
