package loader

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/companin/widget/internal/model"
)

func TestFromDataAttributes(t *testing.T) {
	a := FromDataAttributes(map[string]string{
		"data-client-id":    "c1",
		"data-assistant-id": "a1",
		"data-config-id":    "cfg1",
		"data-locale":       "de",
		"data-start-open":   "true",
		"data-suggestions":  "Pricing|Docs",
		"data-dev":          "true",
	})
	require.Equal(t, Attributes{
		ClientID:    "c1",
		AssistantID: "a1",
		ConfigID:    "cfg1",
		Locale:      "de",
		StartOpen:   true,
		Suggestions: "Pricing|Docs",
		Dev:         true,
	}, a)
}

func TestFromQuery(t *testing.T) {
	q, err := url.ParseQuery("clientId=c1&assistantId=a1&configId=x&startOpen=1&customerId=cust")
	require.NoError(t, err)
	a := FromQuery(q)
	require.True(t, a.StartOpen)
	require.Equal(t, "cust", a.CustomerID)

	q.Set("startOpen", "0")
	require.False(t, FromQuery(q).StartOpen)
}

func TestValidate(t *testing.T) {
	a := Attributes{ClientID: "c1", AssistantID: "a1"}
	require.ErrorIs(t, a.Validate(model.VariantSession), ErrMissingAttribute)
	require.ErrorIs(t, a.Validate(model.VariantDocs), ErrMissingAttribute)
	require.NoError(t, a.Validate(model.VariantConversation))

	err := Attributes{}.Validate(model.VariantSession)
	require.ErrorContains(t, err, "client id, assistant id, config id")
}

func TestIframeURL(t *testing.T) {
	a := Attributes{ClientID: "c1", AssistantID: "a1", ConfigID: "cfg", Suggestions: "x"}

	raw := IframeURL("https://widget.companin.tech/", model.VariantSession, a)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/embed/session", u.Path)
	require.Equal(t, "en", u.Query().Get("locale"))
	require.Equal(t, "false", u.Query().Get("startOpen"))
	require.Empty(t, u.Query().Get("suggestions"))

	u, err = url.Parse(IframeURL("https://widget.companin.tech", model.VariantDocs, a))
	require.NoError(t, err)
	require.Equal(t, "/embed/docs", u.Path)
	require.Equal(t, "x", u.Query().Get("suggestions"))
}

func TestRender(t *testing.T) {
	cfg := ScriptConfig{
		BaseURL:             "https://widget.companin.tech/",
		DevBaseURL:          "http://localhost:3001",
		AllowedOriginSuffix: "companin.tech",
	}

	js, err := Render(model.VariantSession, cfg)
	require.NoError(t, err)
	s := string(js)
	require.Contains(t, s, "window.__COMPANIN_WIDGET__")
	require.Contains(t, s, "window.CompaninWidget")
	require.Contains(t, s, `"https://widget.companin.tech"`)
	require.Contains(t, s, `"http://localhost:3001"`)
	require.Contains(t, s, "/embed/session?")
	require.Contains(t, s, "console.error")
	require.NotContains(t, s, "{{")

	js, err = Render(model.VariantDocs, cfg)
	require.NoError(t, err)
	s = string(js)
	require.Contains(t, s, "window.__COMPANIN_DOCS_WIDGET__")
	require.Contains(t, s, "window.CompaninDocsWidget")
	require.Contains(t, s, "OPEN_DOCS_DIALOG")
	require.True(t, strings.Contains(s, "/embed/docs?"))

	_, err = Render(model.VariantConversation, cfg)
	require.Error(t, err)
	_, err = Render(model.VariantSession, ScriptConfig{})
	require.Error(t, err)
}

func TestRender_EscapesValues(t *testing.T) {
	js, err := Render(model.VariantSession, ScriptConfig{BaseURL: `https://x.test/";alert(1);//`})
	require.NoError(t, err)
	require.Contains(t, string(js), `\";alert(1);`)
}
