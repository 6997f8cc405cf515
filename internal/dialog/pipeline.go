package dialog

import (
	"context"
	"fmt"

	"github.com/calmora/voice-backend/internal/logger"
)

// Phase names the fixed extension points of a turn.
type Phase string

const (
	PhaseStarted         Phase = "started"
	PhaseIntentReceived  Phase = "intentReceived"
	PhaseTransitioned    Phase = "transitioned"
	PhaseBeforeReplySent Phase = "beforeReplySent"
	PhaseUnhandled       Phase = "unhandled"
	PhaseError           Phase = "error"
)

// HookFunc is one extension point handler. Hooks communicate exclusively
// through the shared TurnContext.
type HookFunc func(ctx context.Context, tc *TurnContext) error

// HookEntry is one (phase, handler) pair in the declarative pipeline list.
type HookEntry struct {
	Phase Phase
	Name  string
	Fn    HookFunc
}

// Pipeline is the ordered hook registry. It is built once at bootstrap and
// immutable afterwards; per-turn code only calls Run.
type Pipeline struct {
	log   *logger.Logger
	hooks map[Phase][]HookEntry
}

func NewPipeline(baseLog *logger.Logger, entries []HookEntry) *Pipeline {
	hooks := make(map[Phase][]HookEntry)
	for _, e := range entries {
		hooks[e.Phase] = append(hooks[e.Phase], e)
	}
	return &Pipeline{
		log:   baseLog.With("service", "Pipeline"),
		hooks: hooks,
	}
}

// Run invokes every hook registered for the phase in registration order. The
// first hook error aborts the rest of the phase; hooks that already ran are
// not rolled back.
func (p *Pipeline) Run(ctx context.Context, phase Phase, tc *TurnContext) error {
	for _, e := range p.hooks[phase] {
		if err := e.Fn(ctx, tc); err != nil {
			return fmt.Errorf("hook %s/%s: %w", phase, e.Name, err)
		}
	}
	return nil
}
