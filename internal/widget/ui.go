package widget

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/companin/widget/internal/frame"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/internal/shell"
)

// initialCollapsed decides the starting state. The docs dialog opens only on
// request; the chat widget follows shell.InitialCollapsed.
func initialCollapsed(opts Options, cfg model.WidgetConfig) bool {
	if opts.Variant == model.VariantDocs {
		return !opts.StartOpen
	}
	return shell.InitialCollapsed(opts.StartOpen, cfg, opts.Mobile)
}

// Collapsed reports whether the widget is collapsed (docs dialog closed).
func (s *Session) Collapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsed
}

// SetCollapsed collapses or expands the widget and returns the frames to
// post to the host page.
func (s *Session) SetCollapsed(collapsed bool) []frame.Message {
	s.mu.Lock()
	s.collapsed = collapsed
	s.userToggled = true
	cfg := s.config
	s.mu.Unlock()

	s.changed()
	return s.framesFor(collapsed, cfg)
}

// Toggle flips the collapsed state.
func (s *Session) Toggle() []frame.Message {
	return s.SetCollapsed(!s.Collapsed())
}

// Frames returns the frames that bring the host container in line with the
// current state. The page posts them once on load.
func (s *Session) Frames() []frame.Message {
	s.mu.Lock()
	collapsed, cfg := s.collapsed, s.config
	s.mu.Unlock()

	if s.opts.Variant == model.VariantDocs {
		return []frame.Message{shell.DocsResizeFor(!collapsed)}
	}
	return []frame.Message{shell.ResizeFor(collapsed, cfg)}
}

func (s *Session) framesFor(collapsed bool, cfg model.WidgetConfig) []frame.Message {
	if s.opts.Variant == model.VariantDocs {
		return []frame.Message{shell.DocsResizeFor(!collapsed)}
	}
	return []frame.Message{
		shell.ResizeFor(collapsed, cfg),
		frame.NewCollapse(collapsed),
	}
}

// HandleFrame applies a message the host page posted into the iframe and
// returns the frames to post back.
func (s *Session) HandleFrame(ctx context.Context, msg frame.Message) ([]frame.Message, error) {
	if msg.Type.Direction() != frame.ToIframe {
		return nil, fmt.Errorf("%w: %s is not sent to the widget", frame.ErrUnknownMessage, msg.Type)
	}

	switch msg.Type {
	case frame.TypeOpenDocsDialog:
		return s.SetCollapsed(false), nil

	case frame.TypeCloseDocsDialog:
		return s.SetCollapsed(true), nil

	case frame.TypeHostMessage:
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil || text == "" {
			s.logger.Debug("ignoring non-text host message", zap.ByteString("data", msg.Data))
			return nil, nil
		}
		if err := s.EnsureStarted(ctx); err != nil {
			return nil, err
		}
		return nil, s.SendText(ctx, text)
	}
	return nil, nil
}

// View renders the current presentation model.
func (s *Session) View() shell.View {
	s.mu.Lock()
	in := shell.Input{
		Messages:          append([]model.Message(nil), s.messages...),
		FlowResponses:     append(s.flowResponses[:0:0], s.flowResponses...),
		Typing:            s.typing > 0,
		Config:            s.config,
		Locale:            s.opts.Locale,
		AssistantName:     s.assistantName,
		Collapsed:         s.collapsed,
		HasSession:        s.state.Phase == PhaseActive,
		Error:             s.banner,
		Draft:             s.input,
		Suggestions:       s.opts.Suggestions,
		PersistentButtons: s.opts.Variant == model.VariantDocs,
	}
	s.mu.Unlock()

	in.Clicked = s.clicked.Snapshot()
	in.Feedback = s.gate.Status()
	return shell.Render(in)
}
