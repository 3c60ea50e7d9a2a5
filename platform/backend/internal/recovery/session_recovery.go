package recovery

import (
	"errors"
	"fmt"
	"time"

	backendModels "rummy-platform/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rummy-engine/engine"
	rummyModels "rummy-engine/models"
)

// Restorer re-registers a session in the engine with its persisted scores
type Restorer interface {
	RestoreSession(sessionID string, scores rummyModels.Scores) error
}

// SessionRecovery brings active sessions back into the engine on startup.
// Scores and the round counter survive; the in-memory action log starts
// empty, the persisted history stays queryable.
type SessionRecovery struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSessionRecovery creates a new session recovery instance
func NewSessionRecovery(db *gorm.DB, log *zap.Logger) *SessionRecovery {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionRecovery{db: db, log: log.With(zap.String("component", "recovery"))}
}

// RecoverActiveSessions restores every active session idle for less than
// maxIdle; older ones are closed. A zero maxIdle restores all of them.
// It returns the ids that were restored.
func (sr *SessionRecovery) RecoverActiveSessions(restorer Restorer, maxIdle time.Duration) ([]string, error) {
	sr.log.Info("Starting session recovery")

	var active []backendModels.GameSession
	err := sr.db.Where("status = ?", backendModels.SessionStatusActive).
		Order("created_at ASC").
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}

	if len(active) == 0 {
		sr.log.Info("No active sessions to recover")
		return nil, nil
	}

	now := time.Now().UTC()
	var restored []string
	for _, session := range active {
		if maxIdle > 0 && now.Sub(session.UpdatedAt) > maxIdle {
			sr.closeStale(session.ID, now)
			continue
		}

		scores := rummyModels.Scores{
			User:         session.UserScore,
			Opponent:     session.OpponentScore,
			RoundsPlayed: session.RoundsPlayed,
		}
		if err := restorer.RestoreSession(session.ID, scores); err != nil {
			if errors.Is(err, engine.ErrSessionExists) {
				continue
			}
			sr.log.Error("Failed to restore session", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		restored = append(restored, session.ID)
	}

	sr.log.Info("Session recovery complete",
		zap.Int("found", len(active)),
		zap.Int("restored", len(restored)))
	return restored, nil
}

func (sr *SessionRecovery) closeStale(sessionID string, now time.Time) {
	err := sr.db.Model(&backendModels.GameSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":    backendModels.SessionStatusClosed,
			"closed_at": now,
		}).Error
	if err != nil {
		sr.log.Warn("Failed to close stale session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	sr.log.Info("Closed stale session", zap.String("session_id", sessionID))
}
