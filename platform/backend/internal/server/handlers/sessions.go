package handlers

import (
	"context"
	"errors"
	"net/http"

	"rummy-platform/backend/internal/cache"
	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/locks"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/models"
	"rummy-platform/backend/internal/server/history"
	"rummy-platform/backend/internal/server/publisher"
	"rummy-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rummy-engine/engine"
	rummyModels "rummy-engine/models"
)

// SessionHandler serves the /api/sessions routes
type SessionHandler struct {
	Sessions  *engine.SessionManager
	DB        *db.DB
	History   *history.HistoryTracker
	Publisher *publisher.Publisher
	Cache     *cache.StatsCache
	Locks     *locks.LockManager
	Log       *zap.Logger
}

// RequireOwner aborts unless the :id session exists and belongs to the
// calling client. Other clients' sessions look like missing ones.
func (h *SessionHandler) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		if err := validation.ValidateSessionID(sessionID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, err := h.History.GetSession(sessionID)
		if errors.Is(err, history.ErrSessionNotFound) || (err == nil && session.ClientID != c.GetString(middleware.ClientIDKey)) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		c.Next()
	}
}

// respondEngineError maps engine errors to HTTP statuses
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, engine.ErrSessionExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already exists"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

// HandleCreateSession opens a session in the engine and persists its row
func (h *SessionHandler) HandleCreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if req.SessionID != "" {
		if err := validation.ValidateSessionID(req.SessionID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := h.History.GetSession(req.SessionID); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Session already exists"})
			return
		}
	}

	sessionID, err := h.Sessions.CreateSession(req.SessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	clientID := c.GetString(middleware.ClientIDKey)
	if err := h.History.CreateSession(sessionID, clientID); err != nil {
		h.Log.Error("Failed to persist session", zap.String("session_id", sessionID), zap.Error(err))
		h.Sessions.DestroySession(sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

// HandleListSessions lists the caller's open sessions
func (h *SessionHandler) HandleListSessions(c *gin.Context) {
	sessions, err := h.History.ActiveSessions(c.GetString(middleware.ClientIDKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// HandleDestroySession closes a session everywhere it lives
func (h *SessionHandler) HandleDestroySession(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.Sessions.DestroySession(sessionID); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
		respondEngineError(c, err)
		return
	}
	h.Publisher.Forget(sessionID)
	h.Cache.Invalidate(c.Request.Context(), sessionID)

	if err := h.History.CloseSession(sessionID); err != nil {
		h.Log.Error("Failed to close session", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

func bindObservation(c *gin.Context) (engine.EvaluateRequest, bool) {
	var req models.ObserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return engine.EvaluateRequest{}, false
	}

	hand := validation.SanitizeTokens(req.Hand)
	discard := validation.SanitizeTokens(req.Discard)
	if err := validation.ValidateObservation(hand, discard, req.WildCard); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return engine.EvaluateRequest{}, false
	}

	return engine.EvaluateRequest{Hand: hand, Discard: discard, WildCard: req.WildCard}, true
}

// HandleObserve stores the latest table state for the publish loop
func (h *SessionHandler) HandleObserve(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.Sessions.GetSession(sessionID); err != nil {
		respondEngineError(c, err)
		return
	}

	req, ok := bindObservation(c)
	if !ok {
		return
	}

	h.Publisher.Observe(sessionID, req)
	c.JSON(http.StatusAccepted, gin.H{"message": "Observation queued"})
}

// HandleEvaluate evaluates the posted observation now, or the latest observed
// one when the body is empty
func (h *SessionHandler) HandleEvaluate(c *gin.Context) {
	sessionID := c.Param("id")

	var req engine.EvaluateRequest
	if c.Request.ContentLength > 0 {
		var ok bool
		if req, ok = bindObservation(c); !ok {
			return
		}
	} else {
		latest, ok := h.Publisher.Latest(sessionID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No observation for session"})
			return
		}
		req = latest
	}

	var report rummyModels.Report
	err := h.Locks.WithLock(c.Request.Context(), "session:"+sessionID, func() error {
		var err error
		report, err = h.Sessions.Evaluate(sessionID, req)
		return err
	})
	if errors.Is(err, locks.ErrLockTimeout) || errors.Is(err, locks.ErrLockAlreadyHeld) {
		c.JSON(http.StatusConflict, gin.H{"error": "Session is busy"})
		return
	}
	if err != nil {
		respondEngineError(c, err)
		return
	}
	// the action log grew
	h.Cache.Invalidate(c.Request.Context(), sessionID)

	c.JSON(http.StatusOK, report)
}

// HandleUpdateScores overwrites both tallies
func (h *SessionHandler) HandleUpdateScores(c *gin.Context) {
	sessionID := c.Param("id")

	var req models.ScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := validation.ValidateScores(*req.User, *req.Opponent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Sessions.UpdateScores(sessionID, *req.User, *req.Opponent); err != nil {
		respondEngineError(c, err)
		return
	}

	stats, err := h.Sessions.Stats(sessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	h.persistScores(sessionID, stats.Scores)
	h.cacheStats(c.Request.Context(), sessionID, stats)
	c.JSON(http.StatusOK, stats.Scores)
}

// HandleReset starts a new game in the session
func (h *SessionHandler) HandleReset(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.Sessions.Reset(sessionID); err != nil {
		respondEngineError(c, err)
		return
	}

	stats, err := h.Sessions.Stats(sessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	// rounds played advanced
	h.persistScores(sessionID, stats.Scores)
	h.cacheStats(c.Request.Context(), sessionID, stats)
	c.JSON(http.StatusOK, stats)
}

// persistScores mirrors the engine's tallies into the database so recovery
// restores them. A failed write is logged; the engine stays authoritative.
func (h *SessionHandler) persistScores(sessionID string, scores rummyModels.Scores) {
	if err := h.History.RecordScores(sessionID, scores); err != nil {
		h.Log.Error("Failed to record scores", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// cacheStats replaces the cached snapshot. When the write fails the old
// snapshot is dropped so the next read goes to the engine.
func (h *SessionHandler) cacheStats(ctx context.Context, sessionID string, stats rummyModels.Stats) {
	if err := h.Cache.Put(ctx, sessionID, stats); err != nil {
		h.Cache.Invalidate(ctx, sessionID)
	}
}

// HandleStats serves the cached snapshot when there is one
func (h *SessionHandler) HandleStats(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	if stats, err := h.Cache.Get(ctx, sessionID); err == nil {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, stats)
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		h.Log.Warn("Stats cache read failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	stats, err := h.Sessions.Stats(sessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	h.Cache.Put(ctx, sessionID, stats)

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, stats)
}

// HandleHistory serves the persisted action log
func (h *SessionHandler) HandleHistory(c *gin.Context) {
	history.GetSessionHistory(c, h.DB)
}

// HandleScoreHistory serves the persisted score updates
func (h *SessionHandler) HandleScoreHistory(c *gin.Context) {
	history.GetScoreHistory(c, h.DB)
}
