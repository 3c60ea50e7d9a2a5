package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/models"
	"rummy-platform/backend/internal/server/requests"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rummyModels "rummy-engine/models"
)

func testConfig(t *testing.T) Config {
	return Config{
		DBConfig: db.Config{
			Driver:     db.DriverSQLite,
			SQLitePath: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		},
		AllowedOrigins: []string{"http://localhost:3000"},
		JWTSecret:      "test-jwt-secret",
		ClientSecret:   "test-client-secret",
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: 100,
			BurstSize:         100,
			CleanupInterval:   time.Minute,
		},
	}
}

func newTestServer(t *testing.T, cfg Config) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, s.setupRoutes()
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func issueToken(t *testing.T, router http.Handler, clientID string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/auth/token", "", models.TokenRequest{
		ClientID:     clientID,
		ClientSecret: "test-client-secret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

var workedHand = []string{"AS", "2S", "3S", "4H", "4D", "4C", "7D", "8D", "9D", "KH", "QH", "JC", "2C"}

func TestServer_Auth(t *testing.T) {
	_, router := newTestServer(t, testConfig(t))

	w := doJSON(t, router, http.MethodPost, "/api/auth/token", "", models.TokenRequest{ClientID: "capture-1", ClientSecret: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := issueToken(t, router, "capture-1")
	w = doJSON(t, router, http.MethodGet, "/api/sessions", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_SessionFlow(t *testing.T) {
	s, router := newTestServer(t, testConfig(t))
	token := issueToken(t, router, "capture-1")

	w := doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "table-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "table-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/sessions/table-1/observe", token, models.ObserveRequest{
		Hand:    workedHand,
		Discard: []string{"5D"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	// the publish loop picks the observation up on its next tick
	assert.Equal(t, 1, s.publisher.PublishPending(context.Background()))

	// an empty body re-evaluates the latest observation
	w = doJSON(t, router, http.MethodPost, "/api/sessions/table-1/evaluate", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report rummyModels.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 69, report.CompletionPercentage)
	assert.Equal(t, rummyModels.ActionPickFromDeck, report.Recommendation.Action)
	assert.Equal(t, 0.7, report.Recommendation.Confidence)
	assert.Equal(t, 2, report.Stats.ActionsCount)

	w = doJSON(t, router, http.MethodPut, "/api/sessions/table-1/scores", token, map[string]int{"user": 12, "opponent": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/sessions/table-1/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var stats rummyModels.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 12, stats.Scores.User)
	assert.Equal(t, 30, stats.Scores.Opponent)
	assert.Equal(t, 2, stats.ActionsCount)

	w = doJSON(t, router, http.MethodPost, "/api/sessions/table-1/reset", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Scores.RoundsPlayed)
	assert.Equal(t, 1, stats.ActionsCount)

	// the persisted history outlives the in-memory log the reset cleared
	w = doJSON(t, router, http.MethodGet, "/api/sessions/table-1/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Count   int                      `json:"count"`
		Entries []map[string]interface{} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Equal(t, 3, history.Count)
	assert.Equal(t, rummyModels.LogKindReset, history.Entries[2]["kind"])

	session, err := s.history.GetSession("table-1")
	require.NoError(t, err)
	assert.Equal(t, 12, session.UserScore)
	assert.Equal(t, 1, session.RoundsPlayed)

	w = doJSON(t, router, http.MethodGet, "/api/sessions/table-1/scores/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)

	w = doJSON(t, router, http.MethodDelete, "/api/sessions/table-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions", token, nil)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = doJSON(t, router, http.MethodGet, "/api/sessions/table-1/stats", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SessionsArePrivateToTheirClient(t *testing.T) {
	_, router := newTestServer(t, testConfig(t))
	owner := issueToken(t, router, "capture-1")
	other := issueToken(t, router, "dashboard-9")

	w := doJSON(t, router, http.MethodPost, "/api/sessions", owner, models.CreateSessionRequest{SessionID: "mine"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions/mine/stats", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions", other, nil)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestServer_Validation(t *testing.T) {
	_, router := newTestServer(t, testConfig(t))
	token := issueToken(t, router, "capture-1")
	w := doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "v1"})
	require.Equal(t, http.StatusCreated, w.Code)

	tooMany := make([]string, 65)
	for i := range tooMany {
		tooMany[i] = "AS"
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"hand too large", http.MethodPost, "/api/sessions/v1/observe", models.ObserveRequest{Hand: tooMany}},
		{"unparseable wild card", http.MethodPost, "/api/sessions/v1/evaluate", models.ObserveRequest{Hand: []string{"AS"}, WildCard: "ZZ"}},
		{"negative score", http.MethodPut, "/api/sessions/v1/scores", map[string]int{"user": -1, "opponent": 0}},
		{"missing opponent", http.MethodPut, "/api/sessions/v1/scores", map[string]int{"user": 1}},
		{"bad session id", http.MethodPost, "/api/sessions", models.CreateSessionRequest{SessionID: "no spaces"}},
		{"evaluate without observation", http.MethodPost, "/api/sessions/v1/evaluate", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestServer_MalformedCardsPassThrough(t *testing.T) {
	_, router := newTestServer(t, testConfig(t))
	token := issueToken(t, router, "capture-1")
	doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "m1"})

	w := doJSON(t, router, http.MethodPost, "/api/sessions/m1/evaluate", token, models.ObserveRequest{
		Hand: []string{"AS", "2S", "3S", "??"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report rummyModels.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []string{"??"}, report.Malformed)
	assert.Equal(t, 75, report.CompletionPercentage)
}

func TestServer_EvaluateIsIdempotentPerRequestID(t *testing.T) {
	s, router := newTestServer(t, testConfig(t))
	token := issueToken(t, router, "capture-1")
	doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "idem"})

	body := models.ObserveRequest{Hand: workedHand, Discard: []string{"5D"}}
	first := doJSON(t, router, http.MethodPost, "/api/sessions/idem/evaluate", token, body, requests.HeaderRequestID, "req-1")
	second := doJSON(t, router, http.MethodPost, "/api/sessions/idem/evaluate", token, body, requests.HeaderRequestID, "req-1")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))

	stats, err := s.sessions.Stats("idem")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActionsCount)
}

func TestServer_RecoversSessionsOnRestart(t *testing.T) {
	cfg := testConfig(t)
	first, router := newTestServer(t, cfg)
	token := issueToken(t, router, "capture-1")
	doJSON(t, router, http.MethodPost, "/api/sessions", token, models.CreateSessionRequest{SessionID: "survivor"})
	doJSON(t, router, http.MethodPut, "/api/sessions/survivor/scores", token, map[string]int{"user": 50, "opponent": 20})
	doJSON(t, router, http.MethodPost, "/api/sessions/survivor/reset", token, nil)
	require.Len(t, first.sessions.ListSessions(), 1)

	// a second instance on the same database stands in for a restart
	second, _ := newTestServer(t, cfg)
	second.recoverSessions()

	stats, err := second.sessions.Stats("survivor")
	require.NoError(t, err)
	assert.Equal(t, 50, stats.Scores.User)
	assert.Equal(t, 20, stats.Scores.Opponent)
	assert.Equal(t, 1, stats.Scores.RoundsPlayed)
}

func TestServer_Health(t *testing.T) {
	_, router := newTestServer(t, testConfig(t))

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
