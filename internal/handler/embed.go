package handler

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/frame"
	"github.com/companin/widget/internal/loader"
	"github.com/companin/widget/internal/middleware"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/internal/service"
	"github.com/companin/widget/internal/shell"
	"github.com/companin/widget/internal/widget"
	"github.com/companin/widget/pkg/logger"
)

// VisitorCookie holds the visitor namespace of a browser.
const VisitorCookie = "companin_visitor"

const visitorCookieMaxAge = 365 * 24 * 60 * 60

//go:embed templates/*.html.tmpl
var pageFS embed.FS

var pageTemplate = template.Must(template.ParseFS(pageFS, "templates/embed.html.tmpl"))

// EmbedConfig configures the embed handler.
type EmbedConfig struct {
	InstanceSecret string
	TokenTTL       time.Duration
	DefaultLocale  string
	SecureCookies  bool
}

// EmbedHandler serves the embed pages and the instance API behind them.
type EmbedHandler struct {
	instances *service.InstanceService
	cfg       EmbedConfig
	logger    *logger.Logger
}

// NewEmbedHandler creates a new embed handler.
func NewEmbedHandler(instances *service.InstanceService, cfg EmbedConfig, log *logger.Logger) *EmbedHandler {
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	return &EmbedHandler{
		instances: instances,
		cfg:       cfg,
		logger:    log,
	}
}

// instanceResponse is the state of one instance as seen by the embed page.
type instanceResponse struct {
	InstanceID string              `json:"instance_id"`
	Token      string              `json:"token,omitempty"`
	State      widget.State        `json:"state"`
	View       shell.View          `json:"view"`
	Frames     []frame.Message     `json:"frames,omitempty"`
	Click      *widget.ClickResult `json:"click,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func newInstanceResponse(inst *service.Instance) instanceResponse {
	return instanceResponse{
		InstanceID: inst.ID,
		State:      inst.Session.State(),
		View:       inst.Session.View(),
	}
}

type pageData struct {
	Title      string
	Variant    model.Variant
	InstanceID string
	Token      string
	APIBase    string
	State      string
}

// Page handles GET /embed/{variant}
func (h *EmbedHandler) Page(w http.ResponseWriter, r *http.Request) {
	variant, err := model.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	inst, token, err := h.create(w, r, variant, r.URL.Query())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := newInstanceResponse(inst)
	resp.Token = token
	resp.Frames = inst.Session.Frames()
	state, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render widget")
		return
	}

	data := pageData{
		Title:      "Chat",
		Variant:    variant,
		InstanceID: inst.ID,
		Token:      token,
		APIBase:    "/embed/api/instances/" + inst.ID,
		State:      string(state),
	}
	if resp.View.Header != nil {
		data.Title = resp.View.Header.Title
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render embed page",
			zap.String("instance_id", inst.ID),
			zap.Error(err),
		)
	}
}

// Create handles POST /embed/api/instances
func (h *EmbedHandler) Create(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variant, err := model.ParseVariant(q.Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, token, err := h.create(w, r, variant, q)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := newInstanceResponse(inst)
	resp.Token = token
	resp.Frames = inst.Session.Frames()
	writeJSON(w, http.StatusCreated, resp)
}

func (h *EmbedHandler) create(w http.ResponseWriter, r *http.Request, variant model.Variant, q url.Values) (*service.Instance, string, error) {
	attrs := loader.FromQuery(q)
	if err := attrs.Validate(variant); err != nil {
		return nil, "", fmt.Errorf("%w: %w", widget.ErrInvalidOptions, err)
	}
	for name, id := range map[string]string{
		"client id":    attrs.ClientID,
		"assistant id": attrs.AssistantID,
	} {
		if err := middleware.ValidateIdentifier(name, id); err != nil {
			return nil, "", fmt.Errorf("%w: %w", widget.ErrInvalidOptions, err)
		}
	}
	if attrs.Locale == "" {
		attrs.Locale = h.cfg.DefaultLocale
	}

	opts := widget.Options{
		ClientID:    attrs.ClientID,
		AssistantID: attrs.AssistantID,
		ConfigID:    attrs.ConfigID,
		CustomerID:  attrs.CustomerID,
		Locale:      attrs.Locale,
		StartOpen:   attrs.StartOpen,
		Variant:     variant,
		Mobile:      shell.IsMobileUserAgent(r.UserAgent()),
		Suggestions: widget.ParseSuggestions(attrs.Suggestions),
	}

	namespace := h.visitorNamespace(w, r)
	inst, err := h.instances.Create(r.Context(), namespace, opts)
	if err != nil {
		return nil, "", err
	}

	token, err := middleware.IssueInstanceToken(h.cfg.InstanceSecret, h.cfg.TokenTTL, middleware.InstanceToken{
		Namespace:   namespace,
		InstanceID:  inst.ID,
		ClientID:    opts.ClientID,
		AssistantID: opts.AssistantID,
	})
	if err != nil {
		h.instances.Close(inst.ID, namespace)
		return nil, "", err
	}
	return inst, token, nil
}

// visitorNamespace returns the browser's namespace, issuing a cookie on
// first visit.
func (h *EmbedHandler) visitorNamespace(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   visitorCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.SecureCookies {
		// Third-party iframes only receive cookies marked None and Secure.
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, cookie)
	return id
}
