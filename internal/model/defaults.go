package model

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	defaultsOnce sync.Once
	defaults     WidgetConfig
	defaultsErr  error
)

func loadDefaults() {
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		defaultsErr = fmt.Errorf("failed to parse widget defaults: %w", err)
	}
}

// DefaultWidgetConfig returns a copy of the built-in widget config.
func DefaultWidgetConfig() WidgetConfig {
	defaultsOnce.Do(loadDefaults)
	if defaultsErr != nil {
		panic(defaultsErr)
	}
	return defaults.clone()
}

// WithDefaults returns c with every empty appearance or text field taken
// from the built-in config. Greeting buttons and flows are never invented.
func (c WidgetConfig) WithDefaults() WidgetConfig {
	d := DefaultWidgetConfig()
	out := c.clone()

	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setText := func(dst *LocalizedText, def LocalizedText) {
		if len(*dst) == 0 {
			*dst = def
		}
	}

	setString(&out.ID, d.ID)
	setString(&out.PrimaryColor, d.PrimaryColor)
	setString(&out.SecondaryColor, d.SecondaryColor)
	setString(&out.BackgroundColor, d.BackgroundColor)
	setString(&out.TextColor, d.TextColor)
	setString(&out.Position, d.Position)
	setString(&out.DefaultLanguage, d.DefaultLanguage)
	setString(&out.FontFamily, d.FontFamily)
	setString(&out.FontWeight, d.FontWeight)
	setString(&out.ShadowIntensity, d.ShadowIntensity)
	setString(&out.ShadowColor, d.ShadowColor)
	setString(&out.ButtonSize, d.ButtonSize)
	setInt(&out.BorderRadius, d.BorderRadius)
	setInt(&out.FontSize, d.FontSize)
	setInt(&out.WidgetWidth, d.WidgetWidth)
	setInt(&out.WidgetHeight, d.WidgetHeight)
	setInt(&out.MessageBubbleRadius, d.MessageBubbleRadius)
	setInt(&out.ButtonBorderRadius, d.ButtonBorderRadius)
	setText(&out.Title, d.Title)
	setText(&out.Subtitle, d.Subtitle)
	setText(&out.Placeholder, d.Placeholder)
	setText(&out.GreetingMessage.Text, d.GreetingMessage.Text)
	if out.Opacity <= 0 {
		out.Opacity = d.Opacity
	}

	return out
}

func (c WidgetConfig) clone() WidgetConfig {
	out := c
	out.Title = c.Title.clone()
	out.Subtitle = c.Subtitle.clone()
	out.Placeholder = c.Placeholder.clone()
	out.GreetingMessage.Text = c.GreetingMessage.Text.clone()
	out.GreetingMessage.Buttons = append([]Button(nil), c.GreetingMessage.Buttons...)
	out.GreetingMessage.Flows = append([]Flow(nil), c.GreetingMessage.Flows...)
	return out
}

func (t LocalizedText) clone() LocalizedText {
	if t == nil {
		return nil
	}
	out := make(LocalizedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
