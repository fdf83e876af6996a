// Package loader renders the scripts host pages include to embed the widget,
// and the iframe URLs those scripts point at.
package loader

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/companin/widget/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// ErrMissingAttribute is returned when a required data attribute is absent.
var ErrMissingAttribute = errors.New("missing required attribute")

// Attributes are the data-* attributes of the loader script tag, or the
// equivalent query parameters of an embed page.
type Attributes struct {
	ClientID    string
	AssistantID string
	ConfigID    string
	CustomerID  string
	Locale      string
	StartOpen   bool
	Suggestions string
	Dev         bool
}

// FromDataAttributes reads Attributes from a script tag's attribute map.
func FromDataAttributes(attrs map[string]string) Attributes {
	get := func(k string) string { return strings.TrimSpace(attrs[k]) }
	return Attributes{
		ClientID:    get("data-client-id"),
		AssistantID: get("data-assistant-id"),
		ConfigID:    get("data-config-id"),
		Locale:      get("data-locale"),
		StartOpen:   get("data-start-open") == "true",
		Suggestions: get("data-suggestions"),
		Dev:         get("data-dev") == "true",
	}
}

// FromQuery reads Attributes from embed page query parameters.
func FromQuery(q url.Values) Attributes {
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }
	startOpen := get("startOpen")
	return Attributes{
		ClientID:    get("clientId"),
		AssistantID: get("assistantId"),
		ConfigID:    get("configId"),
		CustomerID:  get("customerId"),
		Locale:      get("locale"),
		StartOpen:   startOpen == "1" || strings.EqualFold(startOpen, "true"),
		Suggestions: get("suggestions"),
	}
}

// Validate checks the attributes the variant requires.
func (a Attributes) Validate(variant model.Variant) error {
	var missing []string
	if a.ClientID == "" {
		missing = append(missing, "client id")
	}
	if a.AssistantID == "" {
		missing = append(missing, "assistant id")
	}
	if a.ConfigID == "" && variant.RequiresConfigID() {
		missing = append(missing, "config id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingAttribute, strings.Join(missing, ", "))
	}
	return nil
}

// IframeURL builds the embed page URL for the variant.
func IframeURL(baseURL string, variant model.Variant, a Attributes) string {
	params := url.Values{}
	params.Set("clientId", a.ClientID)
	params.Set("assistantId", a.AssistantID)
	if a.ConfigID != "" {
		params.Set("configId", a.ConfigID)
	}
	if a.CustomerID != "" {
		params.Set("customerId", a.CustomerID)
	}
	locale := a.Locale
	if locale == "" {
		locale = "en"
	}
	params.Set("locale", locale)
	params.Set("startOpen", fmt.Sprintf("%t", a.StartOpen))
	if variant == model.VariantDocs && a.Suggestions != "" {
		params.Set("suggestions", a.Suggestions)
	}

	return fmt.Sprintf("%s/embed/%s?%s", strings.TrimRight(baseURL, "/"), variant, params.Encode())
}

// ScriptConfig parameterizes a rendered loader script.
type ScriptConfig struct {
	BaseURL             string
	DevBaseURL          string
	AllowedOriginSuffix string
	DefaultLocale       string
}

// ScriptName returns the path a loader script is served under.
func ScriptName(variant model.Variant) (string, error) {
	switch variant {
	case model.VariantSession:
		return "widget.js", nil
	case model.VariantDocs:
		return "docs-widget.js", nil
	default:
		return "", fmt.Errorf("no loader script for variant %q", variant)
	}
}

// Render produces the loader script for the variant.
func Render(variant model.Variant, cfg ScriptConfig) ([]byte, error) {
	name, err := ScriptName(variant)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("loader base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DevBaseURL == "" {
		cfg.DevBaseURL = cfg.BaseURL
	}
	cfg.DevBaseURL = strings.TrimRight(cfg.DevBaseURL, "/")
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", cfg); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
