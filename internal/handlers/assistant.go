package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/logger"
)

const (
	mediaStatusContextSuffix = "actions_intent_media_status"
	dialogStateContextSuffix = "dialog_state"
)

type assistantContext struct {
	Name          string                 `json:"name"`
	LifespanCount int                    `json:"lifespanCount"`
	Parameters    map[string]interface{} `json:"parameters"`
}

type assistantRequest struct {
	ResponseID  string `json:"responseId"`
	Session     string `json:"session"`
	QueryResult struct {
		QueryText string `json:"queryText"`
		Intent    struct {
			DisplayName string `json:"displayName"`
		} `json:"intent"`
		Parameters     map[string]interface{} `json:"parameters"`
		OutputContexts []assistantContext `json:"outputContexts"`
	} `json:"queryResult"`
	OriginalDetectIntentRequest struct {
		Payload struct {
			User struct {
				UserID      string `json:"userId"`
				AccessToken string `json:"accessToken"`
			} `json:"user"`
			Conversation struct {
				Type           string `json:"type"`
				ConversationID string `json:"conversationId"`
			} `json:"conversation"`
		} `json:"payload"`
	} `json:"originalDetectIntentRequest"`
}

// AssistantHandler adapts the text-assistant platform, which reports
// playback progress through an output context instead of an intent.
type AssistantHandler struct {
	log           *logger.Logger
	executor      *dialog.Executor
	defaultBudget time.Duration
}

func NewAssistantHandler(baseLog *logger.Logger, executor *dialog.Executor, defaultBudget time.Duration) *AssistantHandler {
	return &AssistantHandler{
		log:           baseLog.With("handler", "AssistantHandler"),
		executor:      executor,
		defaultBudget: defaultBudget,
	}
}

func (h *AssistantHandler) Handle(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	tc := h.buildTurnContext(c, &req)
	reply := h.executor.Execute(c.Request.Context(), tc)
	c.JSON(http.StatusOK, renderAssistantReply(req.Session, reply))
}

func (h *AssistantHandler) buildTurnContext(c *gin.Context, req *assistantRequest) *dialog.TurnContext {
	payload := req.OriginalDetectIntentRequest.Payload

	return &dialog.TurnContext{
		RequestID:       requestID(c, req.ResponseID),
		SessionID:       req.Session,
		UserID:          payload.User.UserID,
		Platform:        "assistant",
		NewSession:      payload.Conversation.Type == "NEW",
		Intent:          dialog.Intent{Name: req.QueryResult.Intent.DisplayName, Params: stringifyParams(req.QueryResult.Parameters)},
		CurrentState:    dialogState(req.QueryResult.OutputContexts),
		MediaStatus:     mediaStatus(req.QueryResult.OutputContexts),
		RemainingBudget: budgetFrom(c, h.defaultBudget),
		AccessToken:     payload.User.AccessToken,
		Now:             time.Now().UTC(),
	}
}

// stringifyParams flattens intent parameters to strings. The platform sends
// whatever the agent's entities produce: strings, numbers, lists, structs.
// A non-string value must degrade to its printed form, not fail the bind.
func stringifyParams(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// dialogState reads the conversation state we round-trip through an output
// context between turns.
func dialogState(contexts []assistantContext) string {
	for _, octx := range contexts {
		if !strings.HasSuffix(octx.Name, dialogStateContextSuffix) {
			continue
		}
		if v, ok := octx.Parameters["state"].(string); ok {
			return v
		}
	}
	return ""
}

// mediaStatus extracts the side-channel playback marker, when present.
func mediaStatus(contexts []assistantContext) *dialog.MediaStatus {
	for _, octx := range contexts {
		if !strings.HasSuffix(octx.Name, mediaStatusContextSuffix) {
			continue
		}
		status := ""
		if raw, ok := octx.Parameters["MEDIA_STATUS"].(map[string]interface{}); ok {
			if s, ok := raw["status"].(string); ok {
				status = s
			}
		}
		return &dialog.MediaStatus{Status: status}
	}
	return nil
}

func renderAssistantReply(session string, reply *dialog.Reply) gin.H {
	out := gin.H{
		"fulfillmentText": strings.Join(reply.Statements, " "),
		"payload": gin.H{
			"google": gin.H{
				"expectUserResponse": !reply.Terminate,
			},
		},
	}
	if !reply.Terminate {
		out["outputContexts"] = []gin.H{
			{
				"name":          session + "/contexts/" + dialogStateContextSuffix,
				"lifespanCount": 50,
				"parameters":    gin.H{"state": reply.State},
			},
		}
	}
	return out
}
