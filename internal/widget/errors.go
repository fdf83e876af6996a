package widget

import (
	"errors"
	"fmt"
	"strings"

	"github.com/companin/widget/internal/apiclient"
)

var (
	ErrAlreadyStarted    = errors.New("widget session already started")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrNoSession         = errors.New("no active session")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrUnknownButton     = errors.New("unknown button")
	ErrInvalidOptions    = errors.New("invalid widget options")
	ErrClosed            = errors.New("widget session closed")
	ErrFeedbackDisabled  = errors.New("feedback is not available for this widget")
)

// FailureKind classifies widget failures.
type FailureKind string

const (
	AuthFailure          FailureKind = "auth"
	SessionCreateFailure FailureKind = "session_create"
	HistoryLoadFailure   FailureKind = "history_load"
	MessageSendFailure   FailureKind = "message_send"
	ConfigFetchFailure   FailureKind = "config_fetch"
	FeedbackFailure      FailureKind = "feedback"
)

// Banner reports whether failures of this kind are shown to the visitor.
func (k FailureKind) Banner() bool {
	switch k {
	case AuthFailure, SessionCreateFailure, MessageSendFailure:
		return true
	default:
		return false
	}
}

// Failure is a classified widget error with the text shown to the visitor.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err is a Failure of kind.
func IsFailure(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

func newFailure(kind FailureKind, fallback string, err error) *Failure {
	msg := apiclient.DetailOf(err)
	if msg == "" {
		msg = fallback
	}
	return &Failure{Kind: kind, Message: msg, Err: err}
}

// isExpired reports whether err says the session has expired.
func isExpired(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "expired")
}
