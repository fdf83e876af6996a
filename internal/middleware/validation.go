package middleware

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxContentLength    = 10000
	maxCommentLength    = 2000
	maxIdentifierLength = 128
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateInstanceID validates a widget instance id.
func ValidateInstanceID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid instance ID format")
	}
	return nil
}

// ValidateIdentifier validates an opaque id such as a client, assistant,
// config or button id.
func ValidateIdentifier(name, id string) error {
	if len(id) == 0 {
		return errors.New(name + " cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return errors.New(name + " exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New(name + " must be valid UTF-8")
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.New(name + " contains invalid characters")
		}
	}
	return nil
}

// ValidateComment validates an optional feedback comment.
func ValidateComment(comment string) error {
	if len(comment) > maxCommentLength {
		return errors.New("comment exceeds maximum length")
	}
	if !utf8.ValidString(comment) {
		return errors.New("comment must be valid UTF-8")
	}
	return nil
}
