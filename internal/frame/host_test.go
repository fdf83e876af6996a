package frame

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// The host side of the protocol runs in the loader scripts. hostContainer
// and hostController mirror what widget.js and docs-widget.js do with each
// message so the Go encoding is checked against that behaviour.

var errOriginRejected = errors.New("frame origin rejected")

// originPolicy decides which origins may drive the host container.
type originPolicy struct {
	// Dev accepts every origin.
	Dev bool
	// AllowedSuffix is the host suffix accepted in production, e.g. "companin.tech".
	AllowedSuffix string
}

// Allows reports whether origin passes the policy.
func (p originPolicy) Allows(origin string) bool {
	if p.Dev {
		return true
	}
	if p.AllowedSuffix == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	suffix := strings.TrimPrefix(p.AllowedSuffix, ".")
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// hostContainer models the host-page element that holds the iframe.
type hostContainer struct {
	Width   string `json:"width"`
	Height  string `json:"height"`
	Visible bool   `json:"visible"`

	policy originPolicy
}

// newContainer returns a visible, auto-sized container.
func newContainer(policy originPolicy) *hostContainer {
	return &hostContainer{Width: "auto", Height: "auto", Visible: true, policy: policy}
}

// newDocsContainer returns the hidden zero-size container used by the docs
// loader.
func newDocsContainer(policy originPolicy) *hostContainer {
	return &hostContainer{Width: "0", Height: "0", Visible: false, policy: policy}
}

// Apply updates the container from an iframe message sent from origin.
// Host-bound messages other than resize, hide and show are accepted and
// ignored.
func (c *hostContainer) Apply(origin string, msg Message) error {
	if !c.policy.Allows(origin) {
		return fmt.Errorf("%w: %q", errOriginRejected, origin)
	}
	if msg.Type.Direction() != ToHost {
		return fmt.Errorf("%w: %s is not sent to the host", ErrUnknownMessage, msg.Type)
	}

	switch msg.Type {
	case TypeResize:
		if msg.Resize == nil {
			return fmt.Errorf("%w: missing resize data", ErrInvalidPayload)
		}
		c.resize(*msg.Resize)
	case TypeHide:
		c.Hide()
	case TypeShow:
		c.Show()
	}
	return nil
}

func (c *hostContainer) resize(r Resize) {
	switch {
	case r.Hide:
		c.Visible = false
		c.Width = "0"
		c.Height = "0"
		return
	case r.Height.Viewport == ViewportHeight:
		c.Visible = true
		c.Width = ViewportWidth
		c.Height = ViewportHeight
		return
	}
	if !r.Height.IsZero() {
		c.Height = r.Height.CSS()
	}
	if !r.Width.IsZero() {
		c.Width = r.Width.CSS()
	}
}

// Show makes the container visible.
func (c *hostContainer) Show() { c.Visible = true }

// Hide hides the container.
func (c *hostContainer) Hide() { c.Visible = false }

// Resize sets the container size in pixels. Zero leaves a side unchanged.
func (c *hostContainer) Resize(width, height int) {
	if width > 0 {
		c.Width = Px(width).CSS()
	}
	if height > 0 {
		c.Height = Px(height).CSS()
	}
}

// hostController is the host page's public control surface: container commands
// apply locally, dialog and message commands are posted into the iframe.
type hostController struct {
	container *hostContainer
	post      func(Message) error
}

// newController creates a hostController. post delivers messages to the iframe.
func newController(container *hostContainer, post func(Message) error) *hostController {
	return &hostController{container: container, post: post}
}

// Open asks the iframe to open the docs dialog.
func (c *hostController) Open() error {
	return c.post(Message{Type: TypeOpenDocsDialog})
}

// Close asks the iframe to close the docs dialog.
func (c *hostController) Close() error {
	return c.post(Message{Type: TypeCloseDocsDialog})
}

// SendMessage forwards arbitrary data to the iframe as HOST_MESSAGE.
func (c *hostController) SendMessage(data any) error {
	msg, err := NewHostMessage(data)
	if err != nil {
		return err
	}
	return c.post(msg)
}

// Show shows the container.
func (c *hostController) Show() { c.container.Show() }

// Hide hides the container.
func (c *hostController) Hide() { c.container.Hide() }

// Resize resizes the container.
func (c *hostController) Resize(width, height int) { c.container.Resize(width, height) }
