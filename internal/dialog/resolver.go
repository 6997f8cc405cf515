package dialog

import (
	"github.com/calmora/voice-backend/internal/logger"
)

// ResolverConfig names the states and keys the unhandled-input rules route
// to. Zero values fall back to the defaults below.
type ResolverConfig struct {
	LaunchState      string
	ExitState        string
	SelectionState   string
	MediaStatusState string

	MediaLifecycleIntents []string
	NegationIntents       []string
	SelectionIntent       string
	BadInputKey           string
}

// Asynchronous playback callbacks from the voice platform. These must never
// re-enter the dialog.
var defaultMediaLifecycleIntents = []string{
	"AudioPlayer.PlaybackStarted",
	"AudioPlayer.PlaybackFinished",
	"AudioPlayer.PlaybackStopped",
	"AudioPlayer.PlaybackFailed",
	"AudioPlayer.PlaybackNearlyFinished",
}

type rule struct {
	name  string
	apply func(tc *TurnContext) *Transition
}

// Resolver decides what to do with a (state, intent) pair the engine has no
// handler for. The rules run top to bottom, first match wins, and each rule
// assumes the ones above it already excluded their cases. Do not reorder.
type Resolver struct {
	log   *logger.Logger
	rules []rule
}

func NewResolver(baseLog *logger.Logger, cfg ResolverConfig) *Resolver {
	if cfg.LaunchState == "" {
		cfg.LaunchState = "LaunchIntent"
	}
	if cfg.ExitState == "" {
		cfg.ExitState = "exit"
	}
	if cfg.SelectionState == "" {
		cfg.SelectionState = "Display.ElementSelected"
	}
	if cfg.MediaStatusState == "" {
		cfg.MediaStatusState = "MEDIA_STATUS"
	}
	if len(cfg.MediaLifecycleIntents) == 0 {
		cfg.MediaLifecycleIntents = defaultMediaLifecycleIntents
	}
	if len(cfg.NegationIntents) == 0 {
		cfg.NegationIntents = []string{"NoIntent"}
	}
	if cfg.SelectionIntent == "" {
		cfg.SelectionIntent = "Display.ElementSelected"
	}
	if cfg.BadInputKey == "" {
		cfg.BadInputKey = "Error.BadInput.say"
	}

	mediaLifecycle := make(map[string]bool, len(cfg.MediaLifecycleIntents))
	for _, n := range cfg.MediaLifecycleIntents {
		mediaLifecycle[n] = true
	}
	negation := make(map[string]bool, len(cfg.NegationIntents))
	for _, n := range cfg.NegationIntents {
		negation[n] = true
	}

	rules := []rule{
		{
			name: "media lifecycle callback",
			apply: func(tc *TurnContext) *Transition {
				if !mediaLifecycle[tc.Intent.Name] {
					return nil
				}
				return &Transition{Flow: FlowTerminate}
			},
		},
		{
			name: "media status context",
			apply: func(tc *TurnContext) *Transition {
				if tc.MediaStatus == nil {
					return nil
				}
				if tc.MediaStatus.Status == MediaStatusFinished {
					return &Transition{To: cfg.MediaStatusState}
				}
				return &Transition{To: cfg.LaunchState}
			},
		},
		{
			name: "session re-entry",
			apply: func(tc *TurnContext) *Transition {
				if !tc.NewSession {
					return nil
				}
				return &Transition{To: cfg.LaunchState}
			},
		},
		{
			name: "element selection",
			apply: func(tc *TurnContext) *Transition {
				if tc.Intent.Name != cfg.SelectionIntent {
					return nil
				}
				return &Transition{To: cfg.SelectionState}
			},
		},
		{
			name: "negation",
			apply: func(tc *TurnContext) *Transition {
				if !negation[tc.Intent.Name] {
					return nil
				}
				return &Transition{To: cfg.ExitState}
			},
		},
		{
			name: "bad input replay",
			apply: func(tc *TurnContext) *Transition {
				last := tc.Model.LastReply
				if last == nil {
					// First-ever unhandled turn: nothing to replay, the
					// generic bad-input message stands alone.
					return &Transition{Ask: []string{cfg.BadInputKey}}
				}
				keys := []string{cfg.BadInputKey}
				if len(last.Ask) > 0 {
					keys = append(keys, last.Ask[len(last.Ask)-1])
				}
				return &Transition{
					To:         last.To,
					Ask:        keys,
					Directives: append([]string(nil), last.Directives...),
				}
			},
		},
	}

	return &Resolver{
		log:   baseLog.With("service", "UnhandledResolver"),
		rules: rules,
	}
}

// Resolve always returns a transition; the final rule is a catch-all.
func (r *Resolver) Resolve(tc *TurnContext) *Transition {
	for _, ru := range r.rules {
		if t := ru.apply(tc); t != nil {
			r.log.Debug("Unhandled input resolved", "rule", ru.name, "intent", tc.Intent.Name, "state", tc.CurrentState)
			return t
		}
	}
	// Unreachable: the last rule never returns nil.
	return &Transition{Flow: FlowTerminate}
}
