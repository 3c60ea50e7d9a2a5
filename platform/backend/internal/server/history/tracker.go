package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"

	rummyModels "rummy-engine/models"
)

var ErrSessionNotFound = errors.New("session not found")

// HistoryTracker persists engine log entries and score updates so a session's
// history outlives the engine's bounded in-memory log
type HistoryTracker struct {
	db               *db.DB
	log              *zap.Logger
	mu               sync.Mutex
	sessionSequences map[string]int // session_id -> next sequence number
}

// NewHistoryTracker creates a new history tracker instance
func NewHistoryTracker(database *db.DB, log *zap.Logger) *HistoryTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryTracker{
		db:               database,
		log:              log.With(zap.String("component", "history_tracker")),
		sessionSequences: make(map[string]int),
	}
}

// RecordLogEntry stores one engine log entry with the next sequence number
// for its session
func (h *HistoryTracker) RecordLogEntry(sessionID string, entry rummyModels.LogEntry) error {
	seq, err := h.getNextSequence(sessionID)
	if err != nil {
		return err
	}

	metadata := map[string]interface{}{
		"turn": entry.Turn,
	}
	if entry.Inputs != nil {
		metadata["inputs"] = entry.Inputs
	}
	if entry.Note != "" {
		metadata["note"] = entry.Note
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		h.log.Warn("failed to marshal metadata", zap.Error(err))
		metadataJSON = []byte("{}")
	}

	record := models.ActionRecord{
		SessionID:      sessionID,
		SequenceNumber: seq,
		EntryID:        entry.ID,
		Kind:           entry.Kind,
		Fallback:       entry.Fallback,
		Round:          entry.Round,
		Metadata:       string(metadataJSON),
		LoggedAt:       entry.Timestamp,
	}
	if rec := entry.Recommendation; rec != nil {
		action := string(rec.Action)
		confidence := rec.Confidence
		reason := rec.Reason
		record.Action = &action
		record.Confidence = &confidence
		record.Reason = &reason
	}

	if err := h.db.Create(&record).Error; err != nil {
		h.log.Error("failed to save log entry",
			zap.String("session_id", sessionID),
			zap.String("kind", entry.Kind),
			zap.Error(err))
		return err
	}

	h.log.Debug("recorded log entry",
		zap.String("session_id", sessionID),
		zap.String("kind", entry.Kind),
		zap.Int("seq", seq))
	return nil
}

// RecordScores appends a score record and mirrors the tallies onto the
// session row
func (h *HistoryTracker) RecordScores(sessionID string, scores rummyModels.Scores) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		record := models.ScoreRecord{
			SessionID:     sessionID,
			UserScore:     scores.User,
			OpponentScore: scores.Opponent,
			RoundsPlayed:  scores.RoundsPlayed,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		return tx.Model(&models.GameSession{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"user_score":     scores.User,
				"opponent_score": scores.Opponent,
				"rounds_played":  scores.RoundsPlayed,
			}).Error
	})
}

// getNextSequence returns the next sequence number for a session. The first
// call after a restart resumes from what is already stored.
func (h *HistoryTracker) getNextSequence(sessionID string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seq, ok := h.sessionSequences[sessionID]
	if !ok {
		var maxSeq sql.NullInt64
		err := h.db.Model(&models.ActionRecord{}).
			Where("session_id = ?", sessionID).
			Select("MAX(sequence_number)").
			Row().
			Scan(&maxSeq)
		if err != nil {
			return 0, err
		}
		if maxSeq.Valid {
			seq = int(maxSeq.Int64) + 1
		}
	}
	h.sessionSequences[sessionID] = seq + 1

	return seq, nil
}

// CleanupSessionSequence drops the counter of a closed session
func (h *HistoryTracker) CleanupSessionSequence(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessionSequences, sessionID)
}

// CreateSession inserts the row for a newly opened session
func (h *HistoryTracker) CreateSession(sessionID, clientID string) error {
	session := models.GameSession{
		ID:       sessionID,
		ClientID: clientID,
		Status:   models.SessionStatusActive,
	}
	return h.db.Create(&session).Error
}

// CloseSession marks a session closed. Closing an unknown session is not an
// error.
func (h *HistoryTracker) CloseSession(sessionID string) error {
	defer h.CleanupSessionSequence(sessionID)

	return h.db.Model(&models.GameSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":    models.SessionStatusClosed,
			"closed_at": h.db.NowFunc(),
		}).Error
}

// GetSession loads a session row, closed or not
func (h *HistoryTracker) GetSession(sessionID string) (*models.GameSession, error) {
	var session models.GameSession
	err := h.db.Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessions lists open sessions, oldest first. An empty clientID lists
// every client's sessions.
func (h *HistoryTracker) ActiveSessions(clientID string) ([]models.GameSession, error) {
	query := h.db.Where("status = ?", models.SessionStatusActive)
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}

	var sessions []models.GameSession
	err := query.Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}
