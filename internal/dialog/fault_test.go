package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/calmora/voice-backend/internal/logger"
)

type panicRenderer struct{}

func (panicRenderer) RenderPath(key string, tc *TurnContext) (string, error) {
	panic("renderer exploded")
}

type recordingSink struct {
	events []string
}

func (r *recordingSink) Emit(ctx context.Context, event string, kv ...any) {
	r.events = append(r.events, event)
}

func TestFaultHandlerRendersExitMessage(t *testing.T) {
	sink := &recordingSink{}
	f := NewFaultHandler(logger.NewNop(), testRenderer(), sink)

	tc := &TurnContext{Intent: Intent{Name: "YesIntent"}, SessionID: "s1"}
	reply := f.Handle(context.Background(), tc, errors.New("boom"))

	if !reply.Terminate {
		t.Fatal("fault reply must terminate the session")
	}
	if len(reply.Statements) != 1 || reply.Statements[0] != "Something went wrong. Goodbye." {
		t.Fatalf("Statements = %v, want the rendered exit message", reply.Statements)
	}
	if len(sink.events) != 1 || sink.events[0] != "turn.fault" {
		t.Fatalf("events = %v, want [turn.fault]", sink.events)
	}
}

func TestFaultHandlerDiscardsPartialReply(t *testing.T) {
	f := NewFaultHandler(logger.NewNop(), testRenderer(), nil)

	partial := &Reply{State: "Overview"}
	partial.AddStatement("half-built")
	partial.AddReprompt("half-built reprompt")
	tc := &TurnContext{Reply: partial}

	reply := f.Handle(context.Background(), tc, errors.New("boom"))

	if len(reply.Statements) != 1 || reply.Statements[0] != "Something went wrong. Goodbye." {
		t.Fatalf("Statements = %v, want only the exit message", reply.Statements)
	}
	if reply.Reprompt != "" {
		t.Fatalf("Reprompt = %q, want cleared", reply.Reprompt)
	}
}

func TestFaultHandlerFallsBackWhenViewMissing(t *testing.T) {
	f := NewFaultHandler(logger.NewNop(), &stubRenderer{views: map[string]string{}}, nil)

	reply := f.Handle(context.Background(), &TurnContext{}, errors.New("boom"))
	if len(reply.Statements) != 1 || reply.Statements[0] != fallbackStatement {
		t.Fatalf("Statements = %v, want the hard-coded fallback", reply.Statements)
	}
}

func TestFaultHandlerSurvivesRendererPanic(t *testing.T) {
	f := NewFaultHandler(logger.NewNop(), panicRenderer{}, nil)

	reply := f.Handle(context.Background(), &TurnContext{}, errors.New("boom"))
	if !reply.Terminate {
		t.Fatal("fault reply must terminate the session")
	}
	if len(reply.Statements) != 1 || reply.Statements[0] != fallbackStatement {
		t.Fatalf("Statements = %v, want the hard-coded fallback", reply.Statements)
	}
}

func TestFaultHandlerSurvivesNilRenderer(t *testing.T) {
	f := NewFaultHandler(logger.NewNop(), nil, nil)

	reply := f.Handle(context.Background(), &TurnContext{}, errors.New("boom"))
	if len(reply.Statements) != 1 || reply.Statements[0] != fallbackStatement {
		t.Fatalf("Statements = %v, want the hard-coded fallback", reply.Statements)
	}
}
