package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/frame"
	"github.com/companin/widget/internal/middleware"
	"github.com/companin/widget/internal/service"
)

// SendMessageRequest is the body of POST .../messages. An empty content
// sends the current composer draft.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SetInputRequest is the body of PUT .../input.
type SetInputRequest struct {
	Text string `json:"text"`
}

// FeedbackRequest is the body of POST .../feedback.
type FeedbackRequest struct {
	Rating  string `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// instance resolves the instance named in the URL. The token must have
// been issued for it.
func (h *EmbedHandler) instance(w http.ResponseWriter, r *http.Request) (*service.Instance, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateInstanceID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if id != middleware.GetInstanceID(r.Context()) {
		writeError(w, http.StatusForbidden, "token was not issued for this instance")
		return nil, false
	}

	inst, err := h.instances.Get(id, middleware.GetNamespace(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return inst, true
}

// respond writes the instance state. On error the state is still included
// so the page can show the banner.
func (h *EmbedHandler) respond(w http.ResponseWriter, r *http.Request, inst *service.Instance, resp instanceResponse, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = errorMessage(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithContext(
				middleware.GetCorrelationID(r.Context()),
				inst.ID,
				middleware.GetClientID(r.Context()),
			).Warn("widget operation failed", zap.Error(err))
		}
	}

	fresh := newInstanceResponse(inst)
	resp.InstanceID = fresh.InstanceID
	resp.State = fresh.State
	resp.View = fresh.View
	writeJSON(w, status, resp)
}

// Get handles GET /embed/api/instances/{id}
func (h *EmbedHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.respond(w, r, inst, instanceResponse{}, nil)
}

// Start handles POST /embed/api/instances/{id}/start
func (h *EmbedHandler) Start(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	err := inst.Session.EnsureStarted(r.Context())
	h.respond(w, r, inst, instanceResponse{}, err)
}

// SetInput handles PUT /embed/api/instances/{id}/input
func (h *EmbedHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	var req SetInputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Text) > 0 {
		if err := middleware.ValidateMessageContent(req.Text); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	inst.Session.SetInput(req.Text)
	h.respond(w, r, inst, instanceResponse{}, nil)
}

// SendMessage handles POST /embed/api/instances/{id}/messages
func (h *EmbedHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	if req.Content == "" {
		err = inst.Session.Submit(r.Context())
	} else {
		if verr := middleware.ValidateMessageContent(req.Content); verr != nil {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		err = inst.Session.SendText(r.Context(), req.Content)
	}
	h.respond(w, r, inst, instanceResponse{}, err)
}

// ClickButton handles POST /embed/api/instances/{id}/buttons/{buttonID}
func (h *EmbedHandler) ClickButton(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	result, err := inst.Session.ClickButton(r.Context(), chi.URLParam(r, "buttonID"))
	resp := instanceResponse{}
	if err == nil {
		resp.Click = &result
	}
	h.respond(w, r, inst, resp, err)
}

// Toggle handles POST /embed/api/instances/{id}/toggle
func (h *EmbedHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.respond(w, r, inst, instanceResponse{Frames: inst.Session.Toggle()}, nil)
}

// SubmitFeedback handles POST /embed/api/instances/{id}/feedback
func (h *EmbedHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateComment(req.Comment); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := inst.Session.SubmitFeedback(r.Context(), req.Rating, req.Comment)
	h.respond(w, r, inst, instanceResponse{}, err)
}

// SkipFeedback handles POST /embed/api/instances/{id}/feedback/skip
func (h *EmbedHandler) SkipFeedback(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	err := inst.Session.SkipFeedback(r.Context())
	h.respond(w, r, inst, instanceResponse{}, err)
}

// Frame handles POST /embed/api/instances/{id}/frame, relaying a message
// the host page posted into the iframe.
func (h *EmbedHandler) Frame(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	msg, err := frame.Decode(raw)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	frames, err := inst.Session.HandleFrame(r.Context(), msg)
	h.respond(w, r, inst, instanceResponse{Frames: frames}, err)
}

// Close handles DELETE /embed/api/instances/{id}
func (h *EmbedHandler) Close(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	if err := h.instances.Close(inst.ID, inst.Namespace); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
