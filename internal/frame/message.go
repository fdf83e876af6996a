// Package frame defines the typed messages exchanged between the embedded
// widget page and the host page, and a model of the host-side container.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownMessage = errors.New("unknown frame message")
	ErrInvalidPayload = errors.New("invalid frame payload")
)

// Type is the closed set of frame message types.
type Type string

const (
	// iframe to host
	TypeResize   Type = "WIDGET_RESIZE"
	TypeHide     Type = "WIDGET_HIDE"
	TypeShow     Type = "WIDGET_SHOW"
	TypeMinimize Type = "WIDGET_MINIMIZE"
	TypeRestore  Type = "WIDGET_RESTORE"

	// host to iframe
	TypeOpenDocsDialog  Type = "OPEN_DOCS_DIALOG"
	TypeCloseDocsDialog Type = "CLOSE_DOCS_DIALOG"
	TypeHostMessage     Type = "HOST_MESSAGE"
)

// Direction tells which side of the frame boundary sends a message.
type Direction int

const (
	ToHost Direction = iota + 1
	ToIframe
)

// Direction returns who receives messages of type t, or 0 for unknown types.
func (t Type) Direction() Direction {
	switch t {
	case TypeResize, TypeHide, TypeShow, TypeMinimize, TypeRestore:
		return ToHost
	case TypeOpenDocsDialog, TypeCloseDocsDialog, TypeHostMessage:
		return ToIframe
	default:
		return 0
	}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t.Direction() != 0
}

const maxPixels = 100000

// Viewport units accepted as dimensions.
const (
	ViewportWidth  = "100vw"
	ViewportHeight = "100vh"
)

// Dimension is a pixel count or a full-viewport unit.
type Dimension struct {
	Pixels   int
	Viewport string
}

// Px returns a pixel Dimension.
func Px(n int) Dimension { return Dimension{Pixels: n} }

// IsZero reports whether d is zero pixels.
func (d Dimension) IsZero() bool { return d.Viewport == "" && d.Pixels == 0 }

// CSS renders d as a CSS length.
func (d Dimension) CSS() string {
	if d.Viewport != "" {
		return d.Viewport
	}
	return fmt.Sprintf("%dpx", d.Pixels)
}

// MarshalJSON implements json.Marshaler.
func (d Dimension) MarshalJSON() ([]byte, error) {
	if d.Viewport != "" {
		return json.Marshal(d.Viewport)
	}
	return json.Marshal(d.Pixels)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != ViewportWidth && s != ViewportHeight {
			return fmt.Errorf("%w: dimension %q", ErrInvalidPayload, s)
		}
		*d = Dimension{Viewport: s}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: dimension %s", ErrInvalidPayload, data)
	}
	if f < 0 || f > maxPixels || math.IsNaN(f) {
		return fmt.Errorf("%w: dimension %v out of range", ErrInvalidPayload, f)
	}
	*d = Dimension{Pixels: int(math.Round(f))}
	return nil
}

// Resize is the WIDGET_RESIZE payload.
type Resize struct {
	Width  Dimension `json:"width"`
	Height Dimension `json:"height"`
	Hide   bool      `json:"hide,omitempty"`
}

// Collapse is the WIDGET_MINIMIZE and WIDGET_RESTORE payload.
type Collapse struct {
	Collapsed bool `json:"collapsed"`
}

// Message is one decoded frame message. Exactly the payload field that
// matches Type is set.
type Message struct {
	Type     Type
	Resize   *Resize
	Collapse *Collapse
	Data     json.RawMessage
}

// NewResize builds a WIDGET_RESIZE message.
func NewResize(width, height Dimension) Message {
	return Message{Type: TypeResize, Resize: &Resize{Width: width, Height: height}}
}

// NewHideResize builds the zero-size WIDGET_RESIZE that hides the container.
func NewHideResize() Message {
	return Message{Type: TypeResize, Resize: &Resize{Hide: true}}
}

// NewCollapse builds WIDGET_MINIMIZE or WIDGET_RESTORE for the new state.
func NewCollapse(collapsed bool) Message {
	t := TypeRestore
	if collapsed {
		t = TypeMinimize
	}
	return Message{Type: t, Collapse: &Collapse{Collapsed: collapsed}}
}

// NewHostMessage builds a HOST_MESSAGE carrying data.
func NewHostMessage(data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Message{Type: TypeHostMessage, Data: raw}, nil
}

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses and validates a frame message. Unknown types, unknown
// payload fields and malformed dimensions are rejected.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !env.Type.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	msg := Message{Type: env.Type}
	hasData := len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null"))

	switch env.Type {
	case TypeResize:
		if !hasData {
			return Message{}, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, env.Type)
		}
		var r Resize
		if err := strictUnmarshal(env.Data, &r); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		msg.Resize = &r

	case TypeMinimize, TypeRestore:
		if !hasData {
			return Message{}, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, env.Type)
		}
		var c Collapse
		if err := strictUnmarshal(env.Data, &c); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		msg.Collapse = &c

	case TypeHostMessage:
		if len(env.Data) == 0 {
			return Message{}, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, env.Type)
		}
		msg.Data = env.Data

	default:
		if hasData {
			return Message{}, fmt.Errorf("%w: %s takes no data", ErrInvalidPayload, env.Type)
		}
	}

	return msg, nil
}

// Encode validates msg and renders it in wire form.
func Encode(msg Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	env := envelope{Type: msg.Type}
	var err error
	switch msg.Type {
	case TypeResize:
		if msg.Resize == nil {
			return nil, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, msg.Type)
		}
		env.Data, err = json.Marshal(msg.Resize)
	case TypeMinimize, TypeRestore:
		if msg.Collapse == nil {
			return nil, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, msg.Type)
		}
		env.Data, err = json.Marshal(msg.Collapse)
	case TypeHostMessage:
		if len(msg.Data) == 0 {
			return nil, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, msg.Type)
		}
		env.Data = msg.Data
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// MarshalJSON implements json.Marshaler using the wire form.
func (m Message) MarshalJSON() ([]byte, error) {
	return Encode(m)
}

// UnmarshalJSON implements json.Unmarshaler using Decode.
func (m *Message) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
