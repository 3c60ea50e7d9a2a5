package server

import (
	"fmt"
	"strconv"
	"time"

	"rummy-engine/engine"
	"rummy-engine/models"
)

type CommandHandler struct {
	sessionManager *engine.SessionManager
	now            func() time.Time
}

func NewCommandHandler(sessionManager *engine.SessionManager) *CommandHandler {
	return &CommandHandler{sessionManager: sessionManager, now: time.Now}
}

func (h *CommandHandler) Handle(cmd models.Command) models.Response {
	switch cmd.Command {
	case "session.create":
		return h.handleCreateSession(cmd.Data)
	case "session.destroy":
		return h.handleDestroySession(cmd.Data)
	case "session.list":
		return h.handleListSessions()
	case "session.evaluate":
		return h.handleEvaluate(cmd.Data)
	case "session.suggest":
		return h.handleSuggest(cmd.Data)
	case "session.scores":
		return h.handleUpdateScores(cmd.Data)
	case "session.reset":
		return h.handleReset(cmd.Data)
	case "session.stats":
		return h.handleStats(cmd.Data)
	case "hand.analyze":
		return h.handleAnalyzeHand(cmd.Data)
	default:
		return models.Response{Success: false, Error: fmt.Sprintf("unknown command: %s", cmd.Command)}
	}
}

func (h *CommandHandler) handleCreateSession(data map[string]interface{}) models.Response {
	sessionID, err := h.sessionManager.CreateSession(getString(data, "sessionId"))
	if err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true, Data: map[string]string{"sessionId": sessionID}}
}

func (h *CommandHandler) handleDestroySession(data map[string]interface{}) models.Response {
	if err := h.sessionManager.DestroySession(getString(data, "sessionId")); err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true}
}

func (h *CommandHandler) handleListSessions() models.Response {
	sessions := h.sessionManager.ListSessions()
	return models.Response{Success: true, Data: map[string]interface{}{"sessions": sessions}}
}

func (h *CommandHandler) handleEvaluate(data map[string]interface{}) models.Response {
	report, err := h.sessionManager.Evaluate(getString(data, "sessionId"), evaluateRequest(data))
	if err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true, Data: report}
}

func (h *CommandHandler) handleSuggest(data map[string]interface{}) models.Response {
	result, err := h.sessionManager.Suggest(
		getString(data, "sessionId"),
		getStrings(data, "hand"),
		getMelds(data, "melds"),
		getStrings(data, "discard"),
		getString(data, "wildCard"),
	)
	if err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true, Data: result.Recommendation}
}

func (h *CommandHandler) handleUpdateScores(data map[string]interface{}) models.Response {
	sessionID := getString(data, "sessionId")
	if err := h.sessionManager.UpdateScores(sessionID, getInt(data, "user"), getInt(data, "opponent")); err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	stats, _ := h.sessionManager.Stats(sessionID)
	return models.Response{Success: true, Data: stats.Scores}
}

func (h *CommandHandler) handleReset(data map[string]interface{}) models.Response {
	if err := h.sessionManager.Reset(getString(data, "sessionId")); err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true}
}

func (h *CommandHandler) handleStats(data map[string]interface{}) models.Response {
	stats, err := h.sessionManager.Stats(getString(data, "sessionId"))
	if err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true, Data: stats}
}

func (h *CommandHandler) handleAnalyzeHand(data map[string]interface{}) models.Response {
	report, _ := engine.EvaluateHand(evaluateRequest(data), h.now())
	return models.Response{Success: true, Data: report}
}

func evaluateRequest(data map[string]interface{}) engine.EvaluateRequest {
	return engine.EvaluateRequest{
		Hand:     getStrings(data, "hand"),
		Discard:  getStrings(data, "discard"),
		WildCard: getString(data, "wildCard"),
	}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return 0
}

// getStrings accepts either a JSON array of strings or a []string; non-string
// elements are dropped.
func getStrings(data map[string]interface{}, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func getMelds(data map[string]interface{}, key string) [][]string {
	switch v := data[key].(type) {
	case [][]string:
		return v
	case []interface{}:
		out := make([][]string, 0, len(v))
		for _, item := range v {
			out = append(out, getStrings(map[string]interface{}{key: item}, key))
		}
		return out
	}
	return nil
}
