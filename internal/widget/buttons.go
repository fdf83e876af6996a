package widget

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/companin/widget/internal/flow"
	"github.com/companin/widget/internal/model"
	"github.com/companin/widget/pkg/metrics"
)

// ButtonKind tells greeting buttons from buttons inside scripted responses.
type ButtonKind string

const (
	ButtonInteraction ButtonKind = "interaction"
	ButtonFollowUp    ButtonKind = "follow_up"
)

// ClickResult describes what a button click did.
type ClickResult struct {
	Kind        ButtonKind `json:"kind"`
	Duplicate   bool       `json:"duplicate,omitempty"`
	Responded   bool       `json:"responded,omitempty"`
	FlowHandled bool       `json:"flow_handled,omitempty"`
	Sent        bool       `json:"sent,omitempty"`
}

// ClickButton runs a button. Each button id works once per instance; later
// clicks are no-ops. The button's flow is run and its own response is shown
// (after the typing delay for greeting buttons); when neither produced text
// the action is sent as a message.
func (s *Session) ClickButton(ctx context.Context, buttonID string) (ClickResult, error) {
	if _, _, err := s.currentSession(); err != nil {
		return ClickResult{}, err
	}

	s.mu.Lock()
	engine := s.engine
	btn, kind, ok := s.findButtonLocked(buttonID)
	s.mu.Unlock()
	if !ok {
		return ClickResult{}, ErrUnknownButton
	}

	result := ClickResult{Kind: kind}
	if !s.clicked.TryClaim(buttonID) {
		metrics.ButtonClicksTotal.WithLabelValues(string(kind), "duplicate").Inc()
		result.Duplicate = true
		return result, nil
	}
	metrics.ButtonClicksTotal.WithLabelValues(string(kind), "accepted").Inc()
	s.changed()

	// Follow-up responses show at once, ahead of the flow. Greeting
	// button responses follow the flow after the typing delay.
	var resp flow.FlowResponse
	if kind == ButtonFollowUp {
		resp, result.Responded = s.showResponse(ctx, engine, btn, kind)
	}

	steps, handled := engine.Process(btn.Action)
	switch {
	case handled:
		s.appendFlowResponses(steps...)
		metrics.FlowTriggersTotal.WithLabelValues("handled").Inc()
		s.record(ctx, model.EventFlowTriggered, s.SessionID(), btn.Action.Trigger)
		result.FlowHandled = true
	case btn.Action.Kind == model.ActionTrigger:
		metrics.FlowTriggersTotal.WithLabelValues("unhandled").Inc()
	}

	if kind == ButtonInteraction {
		resp, result.Responded = s.showResponse(ctx, engine, btn, kind)
	}

	if resp.Text != "" || handled {
		return result, nil
	}

	literal := btn.Action.Trigger
	if btn.Action.Kind == model.ActionText {
		literal = engine.Localize(btn.Label)
	}
	result.Sent = true
	if err := s.SendText(ctx, literal); err != nil {
		return result, err
	}
	return result, nil
}

// findButtonLocked looks the id up in the greeting buttons, then in the
// buttons of scripted responses. The caller holds s.mu.
func (s *Session) findButtonLocked(id string) (model.Button, ButtonKind, bool) {
	if b, ok := flow.FindButton(s.engine.GreetingButtons(), id); ok {
		return b, ButtonInteraction, true
	}
	for _, r := range s.flowResponses {
		if b, ok := flow.FindButton(r.Buttons, id); ok {
			return b, ButtonFollowUp, true
		}
	}
	return model.Button{}, "", false
}

func (s *Session) appendFlowResponses(responses ...flow.FlowResponse) {
	if len(responses) == 0 {
		return
	}
	s.mu.Lock()
	s.flowResponses = append(s.flowResponses, responses...)
	s.mu.Unlock()
	s.changed()
}

// showResponse appends the button's own scripted response, if it has one.
func (s *Session) showResponse(ctx context.Context, engine *flow.Engine, btn model.Button, kind ButtonKind) (flow.FlowResponse, bool) {
	resp, ok := engine.Respond(btn)
	if !ok {
		return flow.FlowResponse{}, false
	}
	if kind == ButtonInteraction {
		s.simulateTyping(ctx)
	}
	resp.Timestamp = s.now()
	s.appendFlowResponses(resp)
	return resp, true
}

// simulateTyping shows the typing indicator for the typing delay.
func (s *Session) simulateTyping(ctx context.Context) {
	done := s.beginTyping()
	defer done()

	t := time.NewTimer(s.typingDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		s.logger.Debug("typing delay interrupted", zap.Error(ctx.Err()))
	}
}
