package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// paginate reads limit/offset query parameters, clamping limit to 1..100
func paginate(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetSessionHistory returns the persisted action log of a session ordered by
// sequence number
func GetSessionHistory(c *gin.Context, database *db.DB) {
	sessionID := c.Param("id")
	limit, offset := paginate(c)

	var session models.GameSession
	if err := database.Where("id = ?", sessionID).First(&session).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	var records []models.ActionRecord
	err := database.Where("session_id = ?", sessionID).
		Order("sequence_number ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session history"})
		return
	}

	var totalCount int64
	database.Model(&models.ActionRecord{}).Where("session_id = ?", sessionID).Count(&totalCount)

	entries := make([]map[string]interface{}, len(records))
	for i, record := range records {
		var metadata map[string]interface{}
		if record.Metadata != "" && record.Metadata != "{}" {
			json.Unmarshal([]byte(record.Metadata), &metadata)
		}

		entries[i] = map[string]interface{}{
			"id":              record.EntryID,
			"sequence_number": record.SequenceNumber,
			"kind":            record.Kind,
			"action":          record.Action,
			"confidence":      record.Confidence,
			"reason":          record.Reason,
			"fallback":        record.Fallback,
			"round":           record.Round,
			"metadata":        metadata,
			"logged_at":       record.LoggedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"session": map[string]interface{}{
			"status":         session.Status,
			"user_score":     session.UserScore,
			"opponent_score": session.OpponentScore,
			"rounds_played":  session.RoundsPlayed,
			"created_at":     session.CreatedAt,
			"closed_at":      session.ClosedAt,
		},
		"entries": entries,
		"count":   len(entries),
		"total":   totalCount,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetScoreHistory returns every score update recorded for a session, newest
// first
func GetScoreHistory(c *gin.Context, database *db.DB) {
	sessionID := c.Param("id")
	limit, offset := paginate(c)

	var records []models.ScoreRecord
	err := database.Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch score history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"scores":     records,
		"count":      len(records),
	})
}
