package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/middleware"
)

// budgetHeader carries the invocation's remaining wall-clock budget in
// milliseconds when the fronting runtime knows it.
const budgetHeader = "X-Budget-Millis"

type alexaRequest struct {
	Version string `json:"version"`
	Session struct {
		New        bool                   `json:"new"`
		SessionID  string                 `json:"sessionId"`
		Attributes map[string]interface{} `json:"attributes"`
		User       struct {
			UserID      string `json:"userId"`
			AccessToken string `json:"accessToken"`
		} `json:"user"`
	} `json:"session"`
	Context struct {
		System struct {
			User struct {
				UserID      string `json:"userId"`
				AccessToken string `json:"accessToken"`
			} `json:"user"`
		} `json:"System"`
	} `json:"context"`
	Request struct {
		Type      string `json:"type"`
		RequestID string `json:"requestId"`
		Intent    struct {
			Name  string `json:"name"`
			Slots map[string]struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"slots"`
		} `json:"intent"`
	} `json:"request"`
}

// AlexaHandler converts the voice platform's wire payload into a turn
// context, runs the turn, and renders the platform reply shape.
type AlexaHandler struct {
	log           *logger.Logger
	executor      *dialog.Executor
	defaultBudget time.Duration
}

func NewAlexaHandler(baseLog *logger.Logger, executor *dialog.Executor, defaultBudget time.Duration) *AlexaHandler {
	return &AlexaHandler{
		log:           baseLog.With("handler", "AlexaHandler"),
		executor:      executor,
		defaultBudget: defaultBudget,
	}
}

func (h *AlexaHandler) Handle(c *gin.Context) {
	var req alexaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	// Session-ended notifications expect no reply; acknowledge and stop.
	if req.Request.Type == "SessionEndedRequest" {
		c.JSON(http.StatusOK, gin.H{"version": "1.0", "response": gin.H{}})
		return
	}

	tc := h.buildTurnContext(c, &req)
	reply := h.executor.Execute(c.Request.Context(), tc)
	c.JSON(http.StatusOK, renderAlexaReply(reply))
}

func (h *AlexaHandler) buildTurnContext(c *gin.Context, req *alexaRequest) *dialog.TurnContext {
	userID := req.Context.System.User.UserID
	if userID == "" {
		userID = req.Session.User.UserID
	}
	accessToken := req.Context.System.User.AccessToken
	if accessToken == "" {
		accessToken = req.Session.User.AccessToken
	}

	currentState := ""
	if v, ok := req.Session.Attributes["state"].(string); ok {
		currentState = v
	}

	params := make(map[string]string, len(req.Request.Intent.Slots))
	for name, slot := range req.Request.Intent.Slots {
		params[name] = slot.Value
	}

	return &dialog.TurnContext{
		RequestID:       requestID(c, req.Request.RequestID),
		SessionID:       req.Session.SessionID,
		UserID:          userID,
		Platform:        "alexa",
		NewSession:      req.Session.New,
		Intent:          dialog.Intent{Name: alexaIntentName(req), Params: params},
		CurrentState:    currentState,
		RemainingBudget: budgetFrom(c, h.defaultBudget),
		AccessToken:     accessToken,
		Now:             time.Now().UTC(),
	}
}

// alexaIntentName normalizes the platform's request taxonomy into the
// canonical intent names the dialog graph is registered under.
func alexaIntentName(req *alexaRequest) string {
	switch req.Request.Type {
	case "LaunchRequest":
		return "LaunchIntent"
	case "IntentRequest":
		name := req.Request.Intent.Name
		switch name {
		case "AMAZON.StopIntent", "AMAZON.CancelIntent":
			return "NoIntent"
		}
		return strings.TrimPrefix(name, "AMAZON.")
	default:
		// AudioPlayer callbacks, skill lifecycle events and anything new the
		// platform invents arrive as request types; pass them through as
		// intent names for the resolver to sort out. Skill lifecycle events
		// come over the wire as AlexaSkillEvent.*; the canonical names drop
		// the vendor prefix so the persistence exclusion list matches.
		if rest, ok := strings.CutPrefix(req.Request.Type, "AlexaSkillEvent."); ok {
			return "SkillEvent." + rest
		}
		return req.Request.Type
	}
}

func renderAlexaReply(reply *dialog.Reply) gin.H {
	response := gin.H{
		"outputSpeech": gin.H{
			"type": "PlainText",
			"text": strings.Join(reply.Statements, " "),
		},
		"shouldEndSession": reply.Terminate,
	}
	if reply.Reprompt != "" {
		response["reprompt"] = gin.H{
			"outputSpeech": gin.H{
				"type": "PlainText",
				"text": reply.Reprompt,
			},
		}
	}
	return gin.H{
		"version": "1.0",
		"sessionAttributes": gin.H{
			"state": reply.State,
		},
		"response": response,
	}
}

func requestID(c *gin.Context, wireID string) string {
	if id := middleware.RequestIDFrom(c); id != "" {
		return id
	}
	if wireID != "" {
		return wireID
	}
	return uuid.NewString()
}

func budgetFrom(c *gin.Context, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(c.GetHeader(budgetHeader))
	if raw == "" {
		return fallback
	}
	ms, err := time.ParseDuration(raw + "ms")
	if err != nil || ms < 0 {
		return fallback
	}
	return ms
}
