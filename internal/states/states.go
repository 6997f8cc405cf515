package states

import (
	"context"

	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/types"
)

const (
	// StateInitial is where a session starts; it has no handler of its own,
	// so input there routes through the unhandled-input rules.
	StateInitial = "entry"
	// StateTerminal ends the session without expecting further input.
	StateTerminal = "die"

	StateOverview    = "Overview"
	StateExit        = "exit"
	StateMediaStatus = "MEDIA_STATUS"
	StateSelection   = "Display.ElementSelected"
)

// Register wires every state and global intent handler into the engine.
// Registration happens once at bootstrap.
func Register(e *dialog.Engine, qaEnabled bool) {
	e.OnIntent("LaunchIntent", func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		return &dialog.Transition{
			To:  StateOverview,
			Say: []string{"Intent.Launch.say"},
			Ask: []string{"Intent.Launch.ask"},
		}, nil
	})

	e.OnIntent("HelpIntent", func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		return &dialog.Transition{
			To:  StateExit,
			Say: []string{"Intent.Help.say"},
		}, nil
	})

	e.OnState(StateExit, func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		return &dialog.Transition{
			To:   StateTerminal,
			Say:  []string{"Intent.Exit.say"},
			Flow: dialog.FlowTerminate,
		}, nil
	})

	e.OnState(StateOverview, func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		switch tc.Intent.Name {
		case "YesIntent":
			return &dialog.Transition{To: "HelpIntent"}, nil
		case "NoIntent":
			return &dialog.Transition{To: StateExit}, nil
		default:
			return &dialog.Transition{To: StateInitial}, nil
		}
	})

	e.OnState(StateMediaStatus, func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		return &dialog.Transition{
			To:  StateOverview,
			Ask: []string{"MediaStatus.Finished.ask"},
		}, nil
	})

	e.OnState(StateSelection, func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		return &dialog.Transition{
			To:  StateOverview,
			Ask: []string{"Display.Selected.ask"},
		}, nil
	})

	if qaEnabled {
		registerTestStates(e)
	}
}

// registerTestStates adds QA-only intents for resetting user data between
// review runs. TestReset is on the persistence exclusion list, so the wiped
// in-memory record is never written back.
func registerTestStates(e *dialog.Engine) {
	e.OnIntent("TestReset", func(ctx context.Context, tc *dialog.TurnContext) (*dialog.Transition, error) {
		fresh := types.NewUserRecord(tc.UserID)
		if tc.Model.User != nil {
			fresh.UserType = tc.Model.User.UserType
		}
		tc.Model.User = fresh
		tc.Model.LastReply = nil
		return &dialog.Transition{
			To:  StateOverview,
			Say: []string{"Test.Reset.say"},
			Ask: []string{"Intent.Launch.ask"},
		}, nil
	})
}
