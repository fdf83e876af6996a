package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/companin/widget/pkg/metrics"
)

const streamHeartbeat = 30 * time.Second

// Stream handles GET /embed/api/instances/{id}/stream. It sends the
// instance state on connect and after every change, so typing indicators,
// the feedback prompt and expiry resets reach the page without polling.
func (h *EmbedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementStreams()
	defer metrics.DecrementStreams()

	changes, cancel := inst.Watch()
	defer cancel()

	if err := sendSSEEvent(w, flusher, "state", newInstanceResponse(inst)); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("stream client disconnected", zap.String("instance_id", inst.ID))
			return

		case <-inst.Done():
			sendSSEEvent(w, flusher, "closed", map[string]string{"instance_id": inst.ID})
			return

		case <-changes:
			if err := sendSSEEvent(w, flusher, "state", newInstanceResponse(inst)); err != nil {
				return
			}

		case now := <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", map[string]time.Time{"timestamp": now})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
