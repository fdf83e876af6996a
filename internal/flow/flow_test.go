package flow

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/companin/widget/internal/model"
)

func TestLocalize(t *testing.T) {
	text := model.LocalizedText{"en": "Hello", "de": "Hallo", "fr": "Bonjour"}

	tests := []struct {
		name        string
		text        model.LocalizedText
		locale      string
		defaultLang string
		want        string
	}{
		{"requested locale", text, "de", "fr", "Hallo"},
		{"default language", text, "sv", "fr", "Bonjour"},
		{"english fallback", text, "sv", "nb", "Hello"},
		{"first sorted key", model.LocalizedText{"nl": "Hoi", "it": "Ciao"}, "sv", "", "Ciao"},
		{"empty values skipped", model.LocalizedText{"de": "", "es": "Hola"}, "de", "", "Hola"},
		{"empty text", nil, "en", "en", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Localize(tt.text, tt.locale, tt.defaultLang))
		})
	}
}

const flowConfigJSON = `{
  "default_language": "en",
  "greeting_message": {
    "text": {"en": "Hi"},
    "buttons": [
      {"id": "b1", "label": {"en": "Pricing"}, "action": "pricing"},
      {"id": "b2", "label": {"en": "Talk to us"}, "action": "text"},
      {"id": "b3", "label": {"en": "Hours"}, "action": "text", "response": {"text": {"en": "9 to 5"}}},
      {"id": "b4", "label": {"en": "Topics"}, "response": {"buttons": [{"id": "t1", "label": {"en": "Billing"}}]}}
    ],
    "flows": [
      {"trigger": "pricing", "responses": [
        {"text": {"en": "Plans start at 10", "de": "Ab 10"}},
        {"text": {}},
        {"buttons": [{"id": "f1", "label": {"en": "More"}, "action": "more"}]}
      ]}
    ]
  }
}`

func newTestEngine(t *testing.T, locale string) *Engine {
	t.Helper()
	var cfg model.WidgetConfig
	require.NoError(t, json.Unmarshal([]byte(flowConfigJSON), &cfg))
	e := NewEngine(&cfg, locale)
	e.Now = func() time.Time { return time.Unix(100, 0) }
	return e
}

func TestEngineProcess(t *testing.T) {
	e := newTestEngine(t, "de")

	out, handled := e.Process(model.ParseAction("pricing"))
	require.True(t, handled)
	require.Len(t, out, 2)
	require.Equal(t, "Ab 10", out[0].Text)
	require.Equal(t, time.Unix(100, 0), out[0].Timestamp)
	require.Empty(t, out[1].Text)
	require.Len(t, out[1].Buttons, 1)
	require.Equal(t, "f1", out[1].Buttons[0].ID)
}

func TestEngineProcess_Unhandled(t *testing.T) {
	e := newTestEngine(t, "en")

	_, handled := e.Process(model.ParseAction("text"))
	require.False(t, handled)

	_, handled = e.Process(model.ParseAction(""))
	require.False(t, handled)

	_, handled = e.Process(model.ParseAction("unknown"))
	require.False(t, handled)

	_, handled = NewEngine(nil, "en").Process(model.ParseAction("pricing"))
	require.False(t, handled)
}

func TestEngineRespond(t *testing.T) {
	e := newTestEngine(t, "en")
	buttons := e.GreetingButtons()
	require.Len(t, buttons, 4)

	b, ok := FindButton(buttons, "b3")
	require.True(t, ok)
	resp, ok := e.Respond(b)
	require.True(t, ok)
	require.Equal(t, "9 to 5", resp.Text)

	b, ok = FindButton(buttons, "b2")
	require.True(t, ok)
	_, ok = e.Respond(b)
	require.False(t, ok)

	b, ok = FindButton(buttons, "b4")
	require.True(t, ok)
	require.Equal(t, model.ActionText, b.Action.Kind)
	resp, ok = e.Respond(b)
	require.True(t, ok)
	require.Empty(t, resp.Text)
	require.Len(t, resp.Buttons, 1)

	_, ok = FindButton(buttons, "missing")
	require.False(t, ok)
}

func TestClickedSet(t *testing.T) {
	s := NewClickedSet()
	require.True(t, s.TryClaim("b1"))
	require.False(t, s.TryClaim("b1"))
	require.True(t, s.Has("b1"))
	require.False(t, s.Has("b2"))
	require.Equal(t, map[string]bool{"b1": true}, s.Snapshot())
}

func TestClickedSet_ConcurrentClaims(t *testing.T) {
	s := NewClickedSet()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryClaim("same") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
