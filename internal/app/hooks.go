package app

import (
	"context"
	"time"

	"github.com/calmora/voice-backend/internal/auth"
	"github.com/calmora/voice-backend/internal/content"
	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/storage"
	"github.com/calmora/voice-backend/internal/types"
)

// Intents that must not trigger a user save: session lifecycle events and
// the QA reset, which would otherwise pollute persisted history. The Alexa
// adapter normalizes AlexaSkillEvent.* to the unprefixed form, but the wire
// names are listed too so callers that bypass the adapter stay covered.
var persistExcludedIntents = map[string]bool{
	"TestReset":                     true,
	"SkillEvent.SkillDisabled":      true,
	"SkillEvent.SkillEnabled":       true,
	"AlexaSkillEvent.SkillDisabled": true,
	"AlexaSkillEvent.SkillEnabled":  true,
}

// Timeout messaging is tier-specific.
var timeoutKeysByTier = map[types.UserType]string{
	types.UserTypeSubscribed: "TimeOut_AuthSub",
	types.UserTypeAuthFree:   "TimeOut_AuthFree",
	types.UserTypeNoAuth:     "TimeOut_Unsubscribed",
}

const watchdogFallbackStatement = "Sorry, that took longer than expected. Please try again."

// HookDeps carries everything the lifecycle hooks close over.
type HookDeps struct {
	Log          *logger.Logger
	Store        storage.Gateway
	Content      content.Client
	Renderer     dialog.Renderer
	Events       dialog.EventSink
	Tier         *auth.TierClassifier
	SafetyMargin time.Duration
}

// BuildPipeline declares the full hook list in execution order. This is the
// single place turn lifecycle behavior is wired; nothing registers hooks at
// runtime.
func BuildPipeline(deps HookDeps) *dialog.Pipeline {
	return dialog.NewPipeline(deps.Log, []dialog.HookEntry{
		{Phase: dialog.PhaseStarted, Name: "logStart", Fn: deps.logStart},
		{Phase: dialog.PhaseStarted, Name: "loadUser", Fn: deps.loadUser},
		{Phase: dialog.PhaseStarted, Name: "armWatchdog", Fn: deps.armWatchdog},
		{Phase: dialog.PhaseStarted, Name: "loadContent", Fn: deps.loadContent},

		{Phase: dialog.PhaseIntentReceived, Name: "logIntent", Fn: deps.logIntent},

		{Phase: dialog.PhaseUnhandled, Name: "logUnhandled", Fn: deps.logUnhandled},

		{Phase: dialog.PhaseTransitioned, Name: "logTransition", Fn: deps.logTransition},

		{Phase: dialog.PhaseBeforeReplySent, Name: "disarmWatchdog", Fn: deps.disarmWatchdog},
		{Phase: dialog.PhaseBeforeReplySent, Name: "saveLastReply", Fn: deps.saveLastReply},
		{Phase: dialog.PhaseBeforeReplySent, Name: "saveLastVisit", Fn: deps.saveLastVisit},
		{Phase: dialog.PhaseBeforeReplySent, Name: "persistUser", Fn: deps.persistUser},
		{Phase: dialog.PhaseBeforeReplySent, Name: "logReply", Fn: deps.logReply},

		{Phase: dialog.PhaseError, Name: "logError", Fn: deps.logError},
	})
}

func (d HookDeps) logStart(ctx context.Context, tc *dialog.TurnContext) error {
	d.Events.Emit(ctx, "turn.started",
		"requestId", tc.RequestID,
		"sessionId", tc.SessionID,
		"platform", tc.Platform,
		"newSession", tc.NewSession,
	)
	return nil
}

// loadUser pulls the persisted record (or a fresh default), classifies the
// tier from the account-linking token, and exposes the previous reply for
// unhandled-input resolution. A storage failure here is fatal for the turn.
func (d HookDeps) loadUser(ctx context.Context, tc *dialog.TurnContext) error {
	rec, err := d.Store.Get(ctx, tc.UserID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = types.NewUserRecord(tc.UserID)
	}
	rec.AccessToken = tc.AccessToken
	rec.UserType = d.Tier.Classify(tc.AccessToken)
	tc.Model.User = rec
	tc.Model.LastReply = rec.Reply
	return nil
}

// armWatchdog schedules the fallback reply inside the remaining execution
// budget. If normal completion has already begun when the timer fires,
// Complete reports the loss and the rendered fallback is discarded.
//
// The timer callback runs on its own goroutine while the turn goroutine is
// still mutating the context, so everything it needs is snapshotted here:
// the tier key and a copy of the turn context for rendering. The copy pins
// the Model pointers as of arm time; later hooks write the live context,
// never the copy.
func (d HookDeps) armWatchdog(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.RemainingBudget <= 0 || tc.Watchdog == nil {
		return nil
	}
	margin := d.SafetyMargin
	if margin <= 0 {
		margin = dialog.DefaultSafetyMargin
	}

	key := timeoutKeysByTier[types.UserTypeNoAuth]
	if tc.Model.User != nil {
		if k, ok := timeoutKeysByTier[tc.Model.User.UserType]; ok {
			key = k
		}
	}
	snap := *tc
	complete := tc.Complete

	tc.Watchdog.Arm(tc.RemainingBudget, margin, func() {
		reply := &dialog.Reply{State: snap.CurrentState}
		statement, err := d.Renderer.RenderPath(key+".ask", &snap)
		if err != nil {
			d.Log.Warn("Timeout reply render failed", "key", key, "error", err)
			statement = watchdogFallbackStatement
		}
		reply.AddStatement(statement)
		if reprompt, rerr := d.Renderer.RenderPath(key+".reprompt", &snap); rerr == nil {
			reply.AddReprompt(reprompt)
		}

		if complete(reply) {
			d.Events.Emit(ctx, "turn.timeout",
				"requestId", snap.RequestID,
				"tier", key,
			)
		}
	})
	return nil
}

// loadContent enriches the turn with tier-gated catalog items. Failures are
// non-fatal: fields simply stay unset.
func (d HookDeps) loadContent(ctx context.Context, tc *dialog.TurnContext) error {
	if d.Content == nil || tc.Model.User == nil {
		return nil
	}
	bundle := d.Content.FetchBundle(ctx, tc.Model.User.UserType)
	tc.Model.PackContent = bundle.Pack
	tc.Model.SleepSingle = bundle.SleepSingle
	tc.Model.SleepSounds = bundle.SleepSounds
	return nil
}

func (d HookDeps) logIntent(ctx context.Context, tc *dialog.TurnContext) error {
	d.Events.Emit(ctx, "intent.received",
		"requestId", tc.RequestID,
		"intent", tc.Intent.Name,
		"state", tc.CurrentState,
	)
	return nil
}

func (d HookDeps) logUnhandled(ctx context.Context, tc *dialog.TurnContext) error {
	d.Events.Emit(ctx, "turn.unhandled",
		"requestId", tc.RequestID,
		"intent", tc.Intent.Name,
		"state", tc.CurrentState,
	)
	return nil
}

func (d HookDeps) logTransition(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Pending == nil {
		return nil
	}
	d.Events.Emit(ctx, "turn.transitioned",
		"requestId", tc.RequestID,
		"to", tc.Pending.To,
		"flow", string(tc.Pending.Flow),
	)
	return nil
}

func (d HookDeps) disarmWatchdog(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Watchdog != nil {
		tc.Watchdog.Disarm()
	}
	return nil
}

func (d HookDeps) saveLastReply(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Pending == nil || tc.Model.User == nil {
		return nil
	}
	tc.Model.User.Reply = tc.Pending.Summary()
	return nil
}

func (d HookDeps) saveLastVisit(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Model.User == nil || tc.Intent.Name == "ResetIntent" {
		return nil
	}
	now := tc.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	tc.Model.User.LastVisit = now
	return nil
}

// persistUser writes the mutated record back unless the intent is excluded.
// The save path does not tolerate storage failure.
func (d HookDeps) persistUser(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Model.User == nil {
		return nil
	}
	if persistExcludedIntents[tc.Intent.Name] {
		return nil
	}
	tc.Model.User.UserID = tc.UserID
	return d.Store.Put(ctx, tc.Model.User)
}

func (d HookDeps) logReply(ctx context.Context, tc *dialog.TurnContext) error {
	if tc.Reply == nil {
		return nil
	}
	d.Events.Emit(ctx, "reply.sent",
		"requestId", tc.RequestID,
		"statements", len(tc.Reply.Statements),
		"state", tc.Reply.State,
		"terminate", tc.Reply.Terminate,
	)
	return nil
}

func (d HookDeps) logError(ctx context.Context, tc *dialog.TurnContext) error {
	d.Events.Emit(ctx, "turn.error",
		"requestId", tc.RequestID,
		"intent", tc.Intent.Name,
		"state", tc.CurrentState,
	)
	return nil
}
