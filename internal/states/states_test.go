package states

import (
	"context"
	"errors"
	"testing"

	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

func newRegisteredEngine(t *testing.T, qa bool) *dialog.Engine {
	t.Helper()
	e := dialog.NewEngine(logger.NewNop(), StateInitial, StateTerminal)
	Register(e, qa)
	return e
}

func resolve(t *testing.T, e *dialog.Engine, tc *dialog.TurnContext) *dialog.Transition {
	t.Helper()
	tr, err := e.Resolve(context.Background(), tc)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	return tr
}

func TestLaunchIntentFromAnyState(t *testing.T) {
	e := newRegisteredEngine(t, false)
	for _, state := range []string{"", StateOverview, StateExit} {
		tc := &dialog.TurnContext{CurrentState: state, Intent: dialog.Intent{Name: "LaunchIntent"}}
		tr := resolve(t, e, tc)
		if tr.To != StateOverview {
			t.Fatalf("launch from %q: To = %q, want Overview", state, tr.To)
		}
		if len(tr.Ask) == 0 {
			t.Fatalf("launch from %q: no ask, session would close", state)
		}
	}
}

func TestOverviewBranches(t *testing.T) {
	e := newRegisteredEngine(t, false)

	cases := []struct {
		name          string
		intent        string
		wantTo        string
		wantTerminate bool
	}{
		// Yes hops through the global help handler and parks in exit; the
		// next input there closes the session.
		{name: "yes_gets_help", intent: "YesIntent", wantTo: StateExit, wantTerminate: false},
		{name: "no_exits", intent: "NoIntent", wantTo: StateTerminal, wantTerminate: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tc := &dialog.TurnContext{CurrentState: StateOverview, Intent: dialog.Intent{Name: c.intent}}
			tr := resolve(t, e, tc)
			if tr.To != c.wantTo {
				t.Fatalf("To = %q, want %q", tr.To, c.wantTo)
			}
			if (tr.Flow == dialog.FlowTerminate) != c.wantTerminate {
				t.Fatalf("Flow = %q, want terminate=%v", tr.Flow, c.wantTerminate)
			}
			if len(tr.Say) == 0 {
				t.Fatal("chained transition carries no speech")
			}
		})
	}
}

func TestOverviewDefaultFallsThroughToUnhandled(t *testing.T) {
	e := newRegisteredEngine(t, false)
	// Anything else routes back to entry, which has no handler, so the turn
	// lands in the unhandled-input rules.
	tc := &dialog.TurnContext{CurrentState: StateOverview, Intent: dialog.Intent{Name: "MumbleIntent"}}
	_, err := e.Resolve(context.Background(), tc)
	if !errors.Is(err, dialog.ErrNoTransition) {
		t.Fatalf("Resolve error = %v, want ErrNoTransition", err)
	}
}

func TestExitStateTerminates(t *testing.T) {
	e := newRegisteredEngine(t, false)
	tc := &dialog.TurnContext{CurrentState: StateExit, Intent: dialog.Intent{Name: "NoIntent"}}
	tr := resolve(t, e, tc)
	if tr.To != StateTerminal || tr.Flow != dialog.FlowTerminate {
		t.Fatalf("transition = %+v, want terminate at %q", tr, StateTerminal)
	}
}

func TestMediaStatusAndSelectionReturnToOverview(t *testing.T) {
	e := newRegisteredEngine(t, false)
	for _, state := range []string{StateMediaStatus, StateSelection} {
		tc := &dialog.TurnContext{CurrentState: state, Intent: dialog.Intent{Name: "AnyIntent"}}
		tr := resolve(t, e, tc)
		if tr.To != StateOverview {
			t.Fatalf("%s: To = %q, want Overview", state, tr.To)
		}
		if len(tr.Ask) == 0 {
			t.Fatalf("%s: no ask, session would close", state)
		}
	}
}

func TestTestResetOnlyRegisteredWhenQAEnabled(t *testing.T) {
	prod := newRegisteredEngine(t, false)
	tc := &dialog.TurnContext{Intent: dialog.Intent{Name: "TestReset"}}
	if _, err := prod.Resolve(context.Background(), tc); !errors.Is(err, dialog.ErrNoTransition) {
		t.Fatalf("Resolve error = %v, want ErrNoTransition outside QA", err)
	}

	qa := newRegisteredEngine(t, true)
	tr := resolve(t, qa, &dialog.TurnContext{Intent: dialog.Intent{Name: "TestReset"}})
	if tr.To != StateOverview {
		t.Fatalf("To = %q, want Overview", tr.To)
	}
}

func TestTestResetWipesRecordButKeepsTier(t *testing.T) {
	e := newRegisteredEngine(t, true)
	tc := &dialog.TurnContext{
		UserID: "u1",
		Intent: dialog.Intent{Name: "TestReset"},
		Model: dialog.Model{
			User: &types.UserRecord{
				UserID:   "u1",
				UserType: types.UserTypeSubscribed,
				Reply:    &types.ReplySummary{Ask: []string{"Overview.ask"}},
			},
			LastReply: &types.ReplySummary{Ask: []string{"Overview.ask"}},
		},
	}
	resolve(t, e, tc)

	if tc.Model.User == nil || tc.Model.User.UserType != types.UserTypeSubscribed {
		t.Fatalf("User = %+v, want fresh record keeping the subscribed tier", tc.Model.User)
	}
	if tc.Model.User.Reply != nil {
		t.Fatalf("Reply = %+v, want wiped", tc.Model.User.Reply)
	}
	if tc.Model.LastReply != nil {
		t.Fatal("LastReply survived the reset")
	}
}
