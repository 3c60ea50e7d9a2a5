package models

import (
	"time"

	"gorm.io/gorm"
)

// Session statuses
const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

// GameSession is the persisted record of an engine session
type GameSession struct {
	ID            string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	ClientID      string         `gorm:"column:client_id;type:varchar(64);not null;index:idx_client" json:"client_id"`
	Status        string         `gorm:"column:status;type:varchar(16);not null;default:active;index:idx_status" json:"status"`
	UserScore     int            `gorm:"column:user_score;default:0" json:"user_score"`
	OpponentScore int            `gorm:"column:opponent_score;default:0" json:"opponent_score"`
	RoundsPlayed  int            `gorm:"column:rounds_played;default:0" json:"rounds_played"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	ClosedAt      *time.Time     `gorm:"column:closed_at" json:"closed_at,omitempty"`
	DeletedAt     gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}

// ActionRecord mirrors one engine log entry. Sequence numbers are per session.
type ActionRecord struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"column:session_id;type:varchar(36);not null;index:idx_session_seq" json:"session_id"`
	SequenceNumber int       `gorm:"column:sequence_number;not null;index:idx_session_seq" json:"sequence_number"`
	EntryID        string    `gorm:"column:entry_id;type:varchar(36);not null" json:"entry_id"`
	Kind           string    `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Action         *string   `gorm:"column:action;type:varchar(32)" json:"action,omitempty"`
	Confidence     *float64  `gorm:"column:confidence" json:"confidence,omitempty"`
	Reason         *string   `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	Fallback       bool      `gorm:"column:fallback;default:false" json:"fallback"`
	Round          int       `gorm:"column:round;not null" json:"round"`
	Metadata       string    `gorm:"column:metadata;type:json" json:"metadata"`
	LoggedAt       time.Time `gorm:"column:logged_at;not null" json:"logged_at"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ActionRecord) TableName() string {
	return "action_records"
}

// ScoreRecord is an append-only audit of score updates
type ScoreRecord struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID     string    `gorm:"column:session_id;type:varchar(36);not null;index:idx_session" json:"session_id"`
	UserScore     int       `gorm:"column:user_score;not null" json:"user_score"`
	OpponentScore int       `gorm:"column:opponent_score;not null" json:"opponent_score"`
	RoundsPlayed  int       `gorm:"column:rounds_played;not null" json:"rounds_played"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ScoreRecord) TableName() string {
	return "score_records"
}

// AllModels lists every table for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{&GameSession{}, &ActionRecord{}, &ScoreRecord{}}
}

type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ObserveRequest carries the latest state seen by the capture client
type ObserveRequest struct {
	Hand     []string `json:"hand"`
	Discard  []string `json:"discard"`
	WildCard string   `json:"wild_card"`
}

type ScoresRequest struct {
	User     *int `json:"user" binding:"required"`
	Opponent *int `json:"opponent" binding:"required"`
}
