package model

import (
	"encoding/json"
	"strings"
)

// LocalizedText maps a language code to a translation.
type LocalizedText map[string]string

// ActionKind distinguishes the two things a button can do.
type ActionKind int

const (
	// ActionText sends an ordinary message.
	ActionText ActionKind = iota
	// ActionTrigger runs the flow whose trigger matches.
	ActionTrigger
)

// ActionTextSentinel is the configured action string meaning "plain text".
const ActionTextSentinel = "text"

// Action is what a button does when clicked. An absent action or the
// "text" sentinel is ActionText; anything else names a flow trigger.
type Action struct {
	Kind    ActionKind
	Trigger string
}

// ParseAction converts a configured action string into an Action.
func ParseAction(s string) Action {
	s = strings.TrimSpace(s)
	if s == "" || s == ActionTextSentinel {
		return Action{Kind: ActionText}
	}
	return Action{Kind: ActionTrigger, Trigger: s}
}

// String returns the configured form of the action.
func (a Action) String() string {
	if a.Kind == ActionTrigger {
		return a.Trigger
	}
	return ActionTextSentinel
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Action{Kind: ActionText}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseAction(s)
	return nil
}

// UnmarshalYAML lets defaults.yaml spell actions as plain strings.
func (a *Action) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*a = ParseAction(s)
	return nil
}

// Button is a clickable greeting or follow-up button.
type Button struct {
	ID       string          `json:"id" yaml:"id"`
	Label    LocalizedText   `json:"label" yaml:"label"`
	Action   Action          `json:"action" yaml:"action"`
	Icon     string          `json:"icon,omitempty" yaml:"icon,omitempty"`
	Response *ButtonResponse `json:"response,omitempty" yaml:"response,omitempty"`
}

// ButtonResponse is the scripted reply attached directly to a button.
type ButtonResponse struct {
	Text    LocalizedText `json:"text,omitempty" yaml:"text,omitempty"`
	Buttons []Button      `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

// FlowStep is one scripted response inside a flow.
type FlowStep struct {
	Text    LocalizedText `json:"text,omitempty" yaml:"text,omitempty"`
	Buttons []Button      `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

// Flow maps a trigger to a list of scripted responses.
type Flow struct {
	ID        string     `json:"id,omitempty" yaml:"id,omitempty"`
	Trigger   string     `json:"trigger" yaml:"trigger"`
	Responses []FlowStep `json:"responses" yaml:"responses"`
}

// GreetingMessage is the configured greeting with its buttons and flows.
type GreetingMessage struct {
	Text    LocalizedText `json:"text" yaml:"text"`
	Buttons []Button      `json:"buttons,omitempty" yaml:"buttons,omitempty"`
	Flows   []Flow        `json:"flows,omitempty" yaml:"flows,omitempty"`
}

// WidgetConfig is the server-supplied appearance and behavior descriptor.
type WidgetConfig struct {
	ID              string          `json:"id" yaml:"id"`
	PrimaryColor    string          `json:"primary_color" yaml:"primary_color"`
	SecondaryColor  string          `json:"secondary_color" yaml:"secondary_color"`
	BackgroundColor string          `json:"background_color" yaml:"background_color"`
	TextColor       string          `json:"text_color" yaml:"text_color"`
	BorderRadius    int             `json:"border_radius" yaml:"border_radius"`
	Position        string          `json:"position" yaml:"position"`
	StartOpen       bool            `json:"start_open" yaml:"start_open"`
	HideOnMobile    bool            `json:"hide_on_mobile" yaml:"hide_on_mobile"`
	Title           LocalizedText   `json:"title" yaml:"title"`
	Subtitle        LocalizedText   `json:"subtitle" yaml:"subtitle"`
	Placeholder     LocalizedText   `json:"placeholder" yaml:"placeholder"`
	GreetingMessage GreetingMessage `json:"greeting_message" yaml:"greeting_message"`
	DefaultLanguage string          `json:"default_language" yaml:"default_language"`

	FontFamily          string  `json:"font_family" yaml:"font_family"`
	FontSize            int     `json:"font_size" yaml:"font_size"`
	FontWeight          string  `json:"font_weight" yaml:"font_weight"`
	ShadowIntensity     string  `json:"shadow_intensity" yaml:"shadow_intensity"`
	ShadowColor         string  `json:"shadow_color" yaml:"shadow_color"`
	WidgetWidth         int     `json:"widget_width" yaml:"widget_width"`
	WidgetHeight        int     `json:"widget_height" yaml:"widget_height"`
	ButtonSize          string  `json:"button_size" yaml:"button_size"`
	MessageBubbleRadius int     `json:"message_bubble_radius" yaml:"message_bubble_radius"`
	ButtonBorderRadius  int     `json:"button_border_radius" yaml:"button_border_radius"`
	Opacity             float64 `json:"opacity" yaml:"opacity"`
}

// FindFlow returns the flow whose trigger equals trigger.
func (c *WidgetConfig) FindFlow(trigger string) (*Flow, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.GreetingMessage.Flows {
		if c.GreetingMessage.Flows[i].Trigger == trigger {
			return &c.GreetingMessage.Flows[i], true
		}
	}
	return nil, false
}
