package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/companin/widget/internal/feedback"
	"github.com/companin/widget/internal/frame"
	"github.com/companin/widget/internal/service"
	"github.com/companin/widget/internal/widget"
)

const maxBodySize = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON decodes an optional request body into v. An empty body leaves
// v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps widget errors to HTTP statuses.
func statusFor(err error) int {
	var failure *widget.Failure
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInstanceNotFound),
		errors.Is(err, widget.ErrUnknownButton):
		return http.StatusNotFound
	case errors.Is(err, widget.ErrEmptyMessage),
		errors.Is(err, widget.ErrInvalidOptions),
		errors.Is(err, feedback.ErrInvalidRating),
		errors.Is(err, frame.ErrUnknownMessage),
		errors.Is(err, frame.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, widget.ErrNoSession),
		errors.Is(err, widget.ErrAlreadyStarted),
		errors.Is(err, widget.ErrFeedbackDisabled),
		errors.Is(err, feedback.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, widget.ErrClosed):
		return http.StatusGone
	case errors.As(err, &failure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown for err. Failures carry their own
// visitor-facing text.
func errorMessage(err error) string {
	var failure *widget.Failure
	if errors.As(err, &failure) {
		return failure.Message
	}
	return err.Error()
}
