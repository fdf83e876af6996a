package flow

import (
	"time"

	"github.com/companin/widget/internal/model"
)

// FlowResponse is a scripted reply shown in the transcript.
type FlowResponse struct {
	Text      string         `json:"text"`
	Buttons   []model.Button `json:"buttons,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Engine resolves button actions against a widget config.
type Engine struct {
	config        *model.WidgetConfig
	locale        string
	defaultLocale string

	// Now stamps produced responses.
	Now func() time.Time
}

// NewEngine creates an Engine for cfg. A nil cfg resolves nothing.
func NewEngine(cfg *model.WidgetConfig, locale string) *Engine {
	e := &Engine{
		config: cfg,
		locale: locale,
		Now:    time.Now,
	}
	if cfg != nil {
		e.defaultLocale = cfg.DefaultLanguage
	}
	return e
}

// Localize resolves text for the engine's locale.
func (e *Engine) Localize(text model.LocalizedText) string {
	return Localize(text, e.locale, e.defaultLocale)
}

// Process runs the flow named by action. Text actions and unknown triggers
// are reported unhandled so the caller can send a message instead.
func (e *Engine) Process(action model.Action) ([]FlowResponse, bool) {
	if action.Kind != model.ActionTrigger {
		return nil, false
	}
	f, ok := e.config.FindFlow(action.Trigger)
	if !ok {
		return nil, false
	}

	now := e.Now()
	out := make([]FlowResponse, 0, len(f.Responses))
	for _, step := range f.Responses {
		text := e.Localize(step.Text)
		if text == "" && len(step.Buttons) == 0 {
			continue
		}
		out = append(out, FlowResponse{
			Text:      text,
			Buttons:   step.Buttons,
			Timestamp: now,
		})
	}
	return out, true
}

// Respond converts a button's own scripted response into a FlowResponse.
// It reports false when the button carries neither text nor buttons.
func (e *Engine) Respond(b model.Button) (FlowResponse, bool) {
	if b.Response == nil {
		return FlowResponse{}, false
	}
	text := e.Localize(b.Response.Text)
	if text == "" && len(b.Response.Buttons) == 0 {
		return FlowResponse{}, false
	}
	return FlowResponse{
		Text:      text,
		Buttons:   b.Response.Buttons,
		Timestamp: e.Now(),
	}, true
}

// GreetingButtons returns the configured interaction buttons.
func (e *Engine) GreetingButtons() []model.Button {
	if e.config == nil {
		return nil
	}
	return e.config.GreetingMessage.Buttons
}

// FindButton returns the button with id in buttons.
func FindButton(buttons []model.Button, id string) (model.Button, bool) {
	for _, b := range buttons {
		if b.ID == id {
			return b, true
		}
	}
	return model.Button{}, false
}
