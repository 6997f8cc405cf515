package dialog

import (
	"context"
	"time"

	"github.com/calmora/voice-backend/internal/content"
	"github.com/calmora/voice-backend/internal/types"
)

// Flow controls whether the session stays open after a reply.
type Flow string

const (
	FlowContinue  Flow = "continue"
	FlowTerminate Flow = "terminate"
)

// Intent is the recognized user intent for one turn.
type Intent struct {
	Name   string
	Params map[string]string
}

// MediaStatus is the side-channel playback marker some platforms attach to a
// request instead of sending a normal intent.
type MediaStatus struct {
	Status string
}

const MediaStatusFinished = "FINISHED"

// Transition is the engine's (or resolver's) output for a turn: the next
// state plus optional reply view paths and a flow modifier. Say entries are
// spoken and the session closes on terminate; Ask entries keep the session
// open and get a matching reprompt when the catalog has one.
type Transition struct {
	To         string
	Say        []string
	Ask        []string
	Flow       Flow
	Directives []string
}

// HasReply reports whether the transition carries anything to render. A
// reply-less transition is a hop: the engine keeps walking the state graph.
func (t *Transition) HasReply() bool {
	return t != nil && (len(t.Say) > 0 || len(t.Ask) > 0)
}

// Summary converts the transition into the persisted last-reply shape.
func (t *Transition) Summary() *types.ReplySummary {
	if t == nil {
		return nil
	}
	return &types.ReplySummary{
		Say:        append([]string(nil), t.Say...),
		Ask:        append([]string(nil), t.Ask...),
		To:         t.To,
		Flow:       string(t.Flow),
		Directives: append([]string(nil), t.Directives...),
	}
}

// Reply is the accumulated rendered result of a turn.
type Reply struct {
	Statements []string
	Reprompt   string
	State      string
	Terminate  bool
	Directives []string
}

func (r *Reply) Clear() {
	r.Statements = nil
	r.Reprompt = ""
	r.Directives = nil
}

func (r *Reply) AddStatement(s string) {
	if s == "" {
		return
	}
	r.Statements = append(r.Statements, s)
}

func (r *Reply) AddReprompt(s string) {
	if s == "" {
		return
	}
	r.Reprompt = s
}

// Model is the typed per-turn scratch space shared by hooks and states.
type Model struct {
	User        *types.UserRecord
	LastReply   *types.ReplySummary
	PackContent *content.Item
	SleepSingle *content.Item
	SleepSounds *content.Item
}

// TurnContext is the protocol-neutral representation of one inbound request
// and its accumulating result. It is created once per invocation by a
// protocol adapter and never outlives the turn.
type TurnContext struct {
	RequestID    string
	SessionID    string
	UserID       string
	Platform     string
	NewSession   bool
	Intent       Intent
	CurrentState string
	MediaStatus  *MediaStatus

	// RemainingBudget is the wall-clock budget left before the host
	// force-terminates the invocation. Zero disables the watchdog.
	RemainingBudget time.Duration

	AccessToken string
	Now         time.Time

	Model   Model
	Pending *Transition
	Reply   *Reply

	// Watchdog and Complete are installed by the executor before any hook
	// runs. Complete finalizes the turn with the given reply and reports
	// whether this call won; every later call is a no-op returning false.
	Watchdog *Watchdog
	Complete func(*Reply) bool
}

// Renderer resolves a dotted view path (e.g. "Intent.Launch.ask") into a
// rendered statement for this turn.
type Renderer interface {
	RenderPath(key string, tc *TurnContext) (string, error)
}

// EventSink receives fire-and-forget structured telemetry events.
type EventSink interface {
	Emit(ctx context.Context, event string, keysAndValues ...interface{})
}
