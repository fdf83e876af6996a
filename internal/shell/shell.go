// Package shell builds the widget's presentation model. Everything here is a
// pure function of the widget state.
package shell

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/companin/widget/internal/feedback"
	"github.com/companin/widget/internal/flow"
	"github.com/companin/widget/internal/model"
)

// EntryKind distinguishes transcript entries.
type EntryKind string

const (
	EntryMessage EntryKind = "message"
	EntryFlow    EntryKind = "flow"
)

// Input is the widget state rendered by Render.
type Input struct {
	Messages      []model.Message
	FlowResponses []flow.FlowResponse
	Typing        bool
	Config        model.WidgetConfig
	Locale        string
	AssistantName string
	Collapsed     bool
	HasSession    bool
	Error         string
	Draft         string
	Clicked       map[string]bool
	Feedback      feedback.Status
	Suggestions   []string

	// PersistentButtons keeps greeting buttons visible after the first
	// user message.
	PersistentButtons bool
}

// ButtonView is a rendered button.
type ButtonView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Icon     string `json:"icon,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Entry is one transcript line.
type Entry struct {
	Kind      EntryKind    `json:"kind"`
	ID        string       `json:"id,omitempty"`
	Text      string       `json:"text"`
	Sender    model.Sender `json:"sender,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Pending   bool         `json:"pending,omitempty"`
	Buttons   []ButtonView `json:"buttons,omitempty"`
}

// Header is the expanded widget's title bar.
type Header struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	AssistantName string `json:"assistant_name,omitempty"`
}

// Greeting is the configured greeting with its interaction buttons.
type Greeting struct {
	Text    string       `json:"text,omitempty"`
	Buttons []ButtonView `json:"buttons,omitempty"`
}

// Composer is the message input.
type Composer struct {
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
	Disabled    bool   `json:"disabled"`
}

// Toggle is the collapsed launcher button.
type Toggle struct {
	Color    string `json:"color"`
	Size     int    `json:"size"`
	Position string `json:"position"`
}

// Theme carries the appearance fields the page template needs.
type Theme struct {
	PrimaryColor        string  `json:"primary_color"`
	SecondaryColor      string  `json:"secondary_color"`
	BackgroundColor     string  `json:"background_color"`
	TextColor           string  `json:"text_color"`
	FontFamily          string  `json:"font_family"`
	FontSize            int     `json:"font_size"`
	BorderRadius        int     `json:"border_radius"`
	MessageBubbleRadius int     `json:"message_bubble_radius"`
	ButtonBorderRadius  int     `json:"button_border_radius"`
	Opacity             float64 `json:"opacity"`
}

// View is the presentation model of one widget instance. A collapsed view
// carries only the toggle.
type View struct {
	Collapsed   bool            `json:"collapsed"`
	Toggle      Toggle          `json:"toggle"`
	Theme       Theme           `json:"theme"`
	Header      *Header         `json:"header,omitempty"`
	Banner      string          `json:"banner,omitempty"`
	Greeting    *Greeting       `json:"greeting,omitempty"`
	Transcript  []Entry         `json:"transcript,omitempty"`
	Typing      bool            `json:"typing,omitempty"`
	Composer    *Composer       `json:"composer,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Feedback    feedback.Status `json:"feedback"`
}

// Render builds the View for in.
func Render(in Input) View {
	cfg := in.Config
	loc := func(t model.LocalizedText) string {
		return flow.Localize(t, in.Locale, cfg.DefaultLanguage)
	}

	v := View{
		Collapsed: in.Collapsed,
		Toggle: Toggle{
			Color:    cfg.PrimaryColor,
			Size:     ButtonPixelSize(cfg.ButtonSize),
			Position: cfg.Position,
		},
		Theme: Theme{
			PrimaryColor:        cfg.PrimaryColor,
			SecondaryColor:      cfg.SecondaryColor,
			BackgroundColor:     cfg.BackgroundColor,
			TextColor:           cfg.TextColor,
			FontFamily:          cfg.FontFamily,
			FontSize:            cfg.FontSize,
			BorderRadius:        cfg.BorderRadius,
			MessageBubbleRadius: cfg.MessageBubbleRadius,
			ButtonBorderRadius:  cfg.ButtonBorderRadius,
			Opacity:             cfg.Opacity,
		},
		Feedback: in.Feedback,
	}
	if in.Collapsed {
		return v
	}

	v.Header = &Header{
		Title:         loc(cfg.Title),
		Subtitle:      loc(cfg.Subtitle),
		AssistantName: in.AssistantName,
	}
	v.Banner = in.Error
	v.Typing = in.Typing
	v.Transcript = Merge(in.Messages, in.FlowResponses, loc, in.Clicked)
	v.Composer = &Composer{
		Placeholder: loc(cfg.Placeholder),
		Value:       in.Draft,
		Disabled:    !in.HasSession,
	}
	v.Suggestions = in.Suggestions

	hasUser := HasUserMessage(in.Messages)
	g := &Greeting{}
	if !hasUser {
		g.Text = loc(cfg.GreetingMessage.Text)
	}
	if !hasUser || in.PersistentButtons {
		g.Buttons = renderButtons(cfg.GreetingMessage.Buttons, loc, in.Clicked)
	}
	if g.Text != "" || len(g.Buttons) > 0 {
		v.Greeting = g
	}
	return v
}

// Merge interleaves messages and flow responses by timestamp. The sort is
// stable: on equal timestamps messages come first, each list in its own
// order.
func Merge(messages []model.Message, responses []flow.FlowResponse, loc func(model.LocalizedText) string, clicked map[string]bool) []Entry {
	out := make([]Entry, 0, len(messages)+len(responses))
	for _, m := range messages {
		out = append(out, Entry{
			Kind:      EntryMessage,
			ID:        m.ID,
			Text:      m.Text,
			Sender:    m.Sender,
			Timestamp: m.Timestamp,
			Pending:   m.Pending,
		})
	}
	for _, r := range responses {
		out = append(out, Entry{
			Kind:      EntryFlow,
			Text:      r.Text,
			Sender:    model.SenderAssistant,
			Timestamp: r.Timestamp,
			Buttons:   renderButtons(r.Buttons, loc, clicked),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// HasUserMessage reports whether messages contains a user message.
func HasUserMessage(messages []model.Message) bool {
	for _, m := range messages {
		if m.Sender == model.SenderUser {
			return true
		}
	}
	return false
}

func renderButtons(buttons []model.Button, loc func(model.LocalizedText) string, clicked map[string]bool) []ButtonView {
	if len(buttons) == 0 {
		return nil
	}
	out := make([]ButtonView, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, ButtonView{
			ID:       b.ID,
			Label:    loc(b.Label),
			Icon:     b.Icon,
			Disabled: clicked[b.ID],
		})
	}
	return out
}

// ParseStartOpen interprets the startOpen query parameter.
func ParseStartOpen(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

var mobileUA = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|Mobile|Mobi`)

// IsMobileUserAgent reports whether ua looks like a phone or tablet.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// InitialCollapsed decides whether the widget starts collapsed. Mobile
// visitors always start collapsed when the config hides the widget on
// mobile; otherwise either the query parameter or the config can open it.
func InitialCollapsed(startOpen bool, cfg model.WidgetConfig, mobile bool) bool {
	if mobile && cfg.HideOnMobile {
		return true
	}
	return !startOpen && !cfg.StartOpen
}
