package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rummy-platform/backend/internal/cache"
	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/models"
	"rummy-platform/backend/internal/server/history"
	"rummy-platform/backend/internal/server/publisher"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rummy-engine/engine"
	rummyModels "rummy-engine/models"
)

// memStore fakes the redis commands behind the stats cache
type memStore struct {
	mu      sync.Mutex
	values  map[string]string
	failSet bool
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	if data, ok := value.([]byte); ok {
		m.values[key] = string(data)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func setupHandler(t *testing.T, store *memStore) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gormDB.AutoMigrate(models.AllModels()...))
	database := &db.DB{DB: gormDB}

	sessions := engine.NewSessionManager(nil)
	tracker := history.NewHistoryTracker(database, nil)
	statsCache := cache.NewStatsCache(store, time.Minute, nil)

	_, err = sessions.CreateSession("s1")
	require.NoError(t, err)
	require.NoError(t, tracker.CreateSession("s1", "client-1"))

	h := &SessionHandler{
		Sessions:  sessions,
		DB:        database,
		History:   tracker,
		Publisher: publisher.New(sessions, nil, statsCache, 0, nil),
		Cache:     statsCache,
		Log:       zap.NewNop(),
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ClientIDKey, "client-1")
		c.Next()
	})
	owned := r.Group("/sessions/:id", h.RequireOwner())
	owned.POST("/evaluate", h.HandleEvaluate)
	owned.PUT("/scores", h.HandleUpdateScores)
	owned.POST("/reset", h.HandleReset)
	owned.GET("/stats", h.HandleStats)
	return r
}

func send(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getStats(t *testing.T, router http.Handler) (rummyModels.Stats, string) {
	t.Helper()
	w := send(t, router, http.MethodGet, "/sessions/s1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats rummyModels.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	return stats, w.Header().Get("X-Cache")
}

func intPtr(n int) *int { return &n }

func TestHandleUpdateScores_RefreshesCachedStats(t *testing.T) {
	router := setupHandler(t, &memStore{values: map[string]string{}})

	_, hit := getStats(t, router)
	assert.Equal(t, "MISS", hit)
	_, hit = getStats(t, router)
	assert.Equal(t, "HIT", hit)

	w := send(t, router, http.MethodPut, "/sessions/s1/scores", models.ScoresRequest{User: intPtr(120), Opponent: intPtr(45)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stats, _ := getStats(t, router)
	assert.Equal(t, 120, stats.Scores.User)
	assert.Equal(t, 45, stats.Scores.Opponent)
}

func TestHandleReset_RefreshesCachedStats(t *testing.T) {
	router := setupHandler(t, &memStore{values: map[string]string{}})
	getStats(t, router)

	w := send(t, router, http.MethodPost, "/sessions/s1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stats, _ := getStats(t, router)
	assert.Equal(t, 1, stats.Scores.RoundsPlayed)
	assert.Equal(t, 1, stats.ActionsCount)
}

func TestHandleEvaluate_DropsCachedStats(t *testing.T) {
	router := setupHandler(t, &memStore{values: map[string]string{}})
	before, _ := getStats(t, router)
	assert.Equal(t, 0, before.ActionsCount)

	w := send(t, router, http.MethodPost, "/sessions/s1/evaluate", models.ObserveRequest{Hand: []string{"AS", "2S", "3S", "9H"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	after, hit := getStats(t, router)
	assert.Equal(t, "MISS", hit)
	assert.Equal(t, 1, after.ActionsCount)
}

func TestHandleUpdateScores_FailedCacheWriteDropsSnapshot(t *testing.T) {
	store := &memStore{values: map[string]string{}}
	router := setupHandler(t, store)
	getStats(t, router)

	store.mu.Lock()
	store.failSet = true
	store.mu.Unlock()

	w := send(t, router, http.MethodPut, "/sessions/s1/scores", models.ScoresRequest{User: intPtr(7), Opponent: intPtr(3)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stats, hit := getStats(t, router)
	assert.Equal(t, "MISS", hit)
	assert.Equal(t, 7, stats.Scores.User)
}
