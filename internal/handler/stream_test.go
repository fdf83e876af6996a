package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.name != "":
			return ev
		}
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+c.path("/stream")+"?token="+c.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	first := readEvent(t, events)
	require.Equal(t, "state", first.name)
	require.False(t, gjson.Get(first.data, "view.collapsed").Bool())

	rec := env.do(t, http.MethodPost, c.path("/toggle"), c.token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	next := readEvent(t, events)
	require.Equal(t, "state", next.name)
	require.True(t, gjson.Get(next.data, "view.collapsed").Bool())

	rec = env.do(t, http.MethodDelete, c.path(""), c.token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	for {
		ev := readEvent(t, events)
		if ev.name == "closed" {
			require.Equal(t, c.id, gjson.Get(ev.data, "instance_id").String())
			return
		}
	}
}

func TestStream_TokenOnlyForGet(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t)

	rec := env.do(t, http.MethodPost, c.path("/toggle")+"?token="+c.token, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
