package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/calmora/voice-backend/internal/logger"
)

// Executor runs one turn end to end: hook phases, intent dispatch, reply
// rendering, persistence hooks. It guarantees exactly one finalized reply per
// turn across the three termination paths (normal completion, fault, watchdog
// expiry).
type Executor struct {
	log      *logger.Logger
	pipeline *Pipeline
	engine   *Engine
	resolver *Resolver
	renderer Renderer
	fault    *FaultHandler
}

func NewExecutor(baseLog *logger.Logger, pipeline *Pipeline, engine *Engine, resolver *Resolver, renderer Renderer, fault *FaultHandler) *Executor {
	return &Executor{
		log:      baseLog.With("service", "TurnExecutor"),
		pipeline: pipeline,
		engine:   engine,
		resolver: resolver,
		renderer: renderer,
		fault:    fault,
	}
}

// Execute processes the turn and blocks until a reply is finalized by
// whichever path gets there first. The returned reply is never nil.
func (ex *Executor) Execute(ctx context.Context, tc *TurnContext) *Reply {
	done := make(chan *Reply, 1)
	var completed atomic.Bool

	tc.Watchdog = NewWatchdog()
	tc.Reply = &Reply{}
	tc.Complete = func(r *Reply) bool {
		if r == nil {
			r = &Reply{}
		}
		if !completed.CompareAndSwap(false, true) {
			return false
		}
		done <- r
		return true
	}

	go func() {
		reply, err := ex.runTurn(ctx, tc)
		if err != nil {
			ex.runPhaseBestEffort(ctx, PhaseError, tc)
			reply = ex.fault.Handle(ctx, tc, err)
			ex.runPhaseBestEffort(ctx, PhaseBeforeReplySent, tc)
		}
		tc.Complete(reply)
	}()

	return <-done
}

// runTurn is the normal-completion path. Any error (or panic, surfaced as an
// error) routes to the fault handler.
func (ex *Executor) runTurn(ctx context.Context, tc *TurnContext) (reply *Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("turn panicked: %v", p)
		}
	}()

	if err := ex.pipeline.Run(ctx, PhaseStarted, tc); err != nil {
		return nil, err
	}
	if err := ex.pipeline.Run(ctx, PhaseIntentReceived, tc); err != nil {
		return nil, err
	}

	t, err := ex.engine.Resolve(ctx, tc)
	if errors.Is(err, ErrNoTransition) {
		if err := ex.pipeline.Run(ctx, PhaseUnhandled, tc); err != nil {
			return nil, err
		}
		t = ex.resolver.Resolve(tc)
		chained, cerr := ex.engine.Chain(ctx, tc, t)
		switch {
		case cerr == nil:
			t = chained
		case errors.Is(cerr, ErrNoTransition):
			// The resolver's target has no handler; deliver it as-is.
		default:
			return nil, cerr
		}
	} else if err != nil {
		return nil, err
	}
	tc.Pending = t

	if err := ex.pipeline.Run(ctx, PhaseTransitioned, tc); err != nil {
		return nil, err
	}

	if err := ex.renderTransition(tc, t); err != nil {
		return nil, err
	}

	// Persistence hooks disarm the watchdog before the reply is finalized.
	if err := ex.pipeline.Run(ctx, PhaseBeforeReplySent, tc); err != nil {
		return nil, err
	}
	return tc.Reply, nil
}

// renderTransition turns the pending transition into the turn's reply.
func (ex *Executor) renderTransition(tc *TurnContext, t *Transition) error {
	reply := tc.Reply
	reply.State = t.To
	if reply.State == "" {
		reply.State = tc.CurrentState
	}
	if t.Flow == FlowTerminate || t.To == ex.engine.Terminal() {
		reply.Terminate = true
	}
	reply.Directives = append(reply.Directives, t.Directives...)

	for _, key := range t.Say {
		statement, err := ex.renderer.RenderPath(key, tc)
		if err != nil {
			return fmt.Errorf("render %q: %w", key, err)
		}
		reply.AddStatement(statement)
	}
	for _, key := range t.Ask {
		statement, err := ex.renderer.RenderPath(key, tc)
		if err != nil {
			return fmt.Errorf("render %q: %w", key, err)
		}
		reply.AddStatement(statement)

		// A matching reprompt is optional in the catalog.
		if strings.HasSuffix(key, ".ask") {
			repromptKey := strings.TrimSuffix(key, ".ask") + ".reprompt"
			if reprompt, err := ex.renderer.RenderPath(repromptKey, tc); err == nil {
				reply.AddReprompt(reprompt)
			}
		}
	}
	return nil
}

// runPhaseBestEffort executes a phase on the fault path so persistence and
// error logging still happen where safe. Errors and panics here are logged
// and swallowed; the fault reply already stands.
func (ex *Executor) runPhaseBestEffort(ctx context.Context, phase Phase, tc *TurnContext) {
	defer func() {
		if p := recover(); p != nil {
			ex.log.Warn("Hook phase panicked after fault", "phase", phase, "panic", p, "requestId", tc.RequestID)
		}
	}()
	if err := ex.pipeline.Run(ctx, phase, tc); err != nil {
		ex.log.Warn("Hook phase failed after fault", "phase", phase, "error", err, "requestId", tc.RequestID)
	}
}
