package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is returned when the API answers with a non-2xx status or a
// body whose status is not "success".
type APIError struct {
	Operation string
	Status    int
	Detail    string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Operation, e.Detail, e.Status)
	}
	return fmt.Sprintf("%s: unexpected response (status %d)", e.Operation, e.Status)
}

// IsUnauthorized reports whether err is a 401/403 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// DetailOf returns the server-provided detail of err, if any.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

func newAPIError(operation string, status int, body []byte) *APIError {
	return &APIError{
		Operation: operation,
		Status:    status,
		Detail:    extractDetail(body),
	}
}

// extractDetail pulls a human-readable message out of an error body. The
// API uses {"detail": "..."} but validation failures carry
// {"detail": [{"msg": "..."}]}.
func extractDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "detail")
	if detail.IsArray() {
		var parts []string
		for _, item := range detail.Array() {
			if msg := item.Get("msg"); msg.Exists() {
				parts = append(parts, msg.String())
			} else if item.Type == gjson.String {
				parts = append(parts, item.String())
			}
		}
		return strings.Join(parts, "; ")
	}
	if detail.Exists() && detail.Type != gjson.Null {
		return detail.String()
	}

	for _, path := range []string{"message", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
