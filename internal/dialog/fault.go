package dialog

import (
	"context"

	"github.com/calmora/voice-backend/internal/logger"
)

const exitMessageKey = "Exit_Msg.tell"

// Spoken when even rendering the exit message fails.
const fallbackStatement = "Sorry, something went wrong. Goodbye."

// FaultHandler converts any uncaught failure into a terminal reply. It is the
// last line of defense and never fails itself.
type FaultHandler struct {
	log      *logger.Logger
	renderer Renderer
	events   EventSink
}

func NewFaultHandler(baseLog *logger.Logger, renderer Renderer, events EventSink) *FaultHandler {
	return &FaultHandler{
		log:      baseLog.With("service", "FaultHandler"),
		renderer: renderer,
		events:   events,
	}
}

// Handle logs the fault and returns the fixed exit statement with the
// session marked closed, discarding any partially built reply.
func (f *FaultHandler) Handle(ctx context.Context, tc *TurnContext, fault error) *Reply {
	f.log.Error("Turn faulted", "error", fault, "intent", tc.Intent.Name, "state", tc.CurrentState, "requestId", tc.RequestID)
	if f.events != nil {
		f.events.Emit(ctx, "turn.fault", "error", fault.Error(), "sessionId", tc.SessionID)
	}

	statement := f.renderExit(tc)

	reply := &Reply{}
	if tc.Reply != nil {
		reply = tc.Reply
		reply.Clear()
	}
	reply.AddStatement(statement)
	reply.Terminate = true
	tc.Reply = reply
	return reply
}

func (f *FaultHandler) renderExit(tc *TurnContext) (statement string) {
	statement = fallbackStatement
	defer func() {
		// A renderer panic here must not escape the fault path.
		if recover() != nil {
			statement = fallbackStatement
		}
	}()
	if f.renderer == nil {
		return statement
	}
	rendered, err := f.renderer.RenderPath(exitMessageKey, tc)
	if err == nil && rendered != "" {
		statement = rendered
	}
	return statement
}
