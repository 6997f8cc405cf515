package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/calmora/voice-backend/internal/logger"
)

// ErrNoTransition is returned when neither a global intent handler nor a
// state handler produced a transition for the current turn. The caller routes
// it to the unhandled-input resolver; it is not a fault.
var ErrNoTransition = errors.New("dialog: no transition registered")

// maxHops bounds reply-less state chaining so a miswired graph cannot loop.
const maxHops = 8

// StateHandler produces the transition for a state (or a global intent).
// Returning (nil, nil) means the handler declined the turn.
type StateHandler func(ctx context.Context, tc *TurnContext) (*Transition, error)

// Engine is the finite-state dialog machine. All registration happens at
// bootstrap; Resolve holds no per-invocation state.
type Engine struct {
	log      *logger.Logger
	initial  string
	terminal string
	states   map[string]StateHandler
	globals  map[string]StateHandler
}

func NewEngine(baseLog *logger.Logger, initialState, terminalState string) *Engine {
	return &Engine{
		log:      baseLog.With("service", "DialogEngine"),
		initial:  initialState,
		terminal: terminalState,
		states:   make(map[string]StateHandler),
		globals:  make(map[string]StateHandler),
	}
}

// OnIntent registers a global handler for an intent name, checked before any
// state handler regardless of the current state.
func (e *Engine) OnIntent(name string, h StateHandler) {
	e.globals[name] = h
}

// OnState registers the handler for a state.
func (e *Engine) OnState(name string, h StateHandler) {
	e.states[name] = h
}

func (e *Engine) Initial() string  { return e.initial }
func (e *Engine) Terminal() string { return e.terminal }

// Resolve maps (current state, intent) to a transition. Order: a global
// handler for the intent name wins; otherwise the current state's handler
// runs (absent current state means the initial state). Reply-less hops are
// then followed until a transition carries a reply or the walk dead-ends.
func (e *Engine) Resolve(ctx context.Context, tc *TurnContext) (*Transition, error) {
	h, ok := e.globals[tc.Intent.Name]
	if !ok {
		current := tc.CurrentState
		if current == "" {
			current = e.initial
		}
		h, ok = e.states[current]
	}
	if !ok {
		return nil, ErrNoTransition
	}
	t, err := h(ctx, tc)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTransition
	}
	return e.Chain(ctx, tc, t)
}

// Chain follows reply-less transitions through the state graph: a hop to a
// registered state (or a global intent name) runs that handler for the next
// transition. A reply-less hop to nowhere is ErrNoTransition.
func (e *Engine) Chain(ctx context.Context, tc *TurnContext, t *Transition) (*Transition, error) {
	for hops := 0; hops < maxHops; hops++ {
		if t.HasReply() || t.To == "" || t.To == e.terminal {
			return t, nil
		}
		h, ok := e.states[t.To]
		if !ok {
			h, ok = e.globals[t.To]
		}
		if !ok {
			return nil, ErrNoTransition
		}
		next, err := h(ctx, tc)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrNoTransition
		}
		t = next
	}
	return nil, fmt.Errorf("dialog: transition chain exceeded %d hops at state %q", maxHops, t.To)
}
