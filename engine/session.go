package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rummy-engine/models"
)

// ActionLogCapacity bounds the per-session action log; the oldest entries are
// evicted first.
const ActionLogCapacity = 50

// EvaluateRequest is one observation of the table: the hand, the discard pile
// with its top card last, and an optional wild card.
type EvaluateRequest struct {
	Hand     []string `json:"hand"`
	Discard  []string `json:"discard"`
	WildCard string   `json:"wildCard"`
}

// Session holds the state of one game: scores, turn, and the rolling action
// log. All methods are safe for concurrent use.
type Session struct {
	id     string
	logger *zap.Logger
	now    func() time.Time

	// onAction, when set, sees every log entry after s.mu is released.
	onAction func(models.LogEntry)

	mu         sync.Mutex
	scores     models.Scores
	state      models.GameState
	actionLog  []models.LogEntry
	lastAction *models.LogEntry
}

func NewSession(id string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:        id,
		logger:    logger.With(zap.String("session_id", id)),
		now:       time.Now,
		state:     initialGameState(),
		actionLog: make([]models.LogEntry, 0, ActionLogCapacity),
	}
}

func initialGameState() models.GameState {
	return models.GameState{
		CurrentTurn: models.TurnUser,
		RoundNumber: 1,
		Phase:       models.PhasePlaying,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Suggest runs the recommendation cascade and records the outcome in the
// action log.
func (s *Session) Suggest(hand []string, melds [][]string, discardPile []string, wildCard string) Result {
	result := Suggest(hand, melds, discardPile, wildCard)

	s.mu.Lock()
	entry := s.recordSuggestion(result)
	s.mu.Unlock()

	s.notify(entry)
	return result
}

// Evaluate analyzes a hand, recommends an action and returns the full report.
func (s *Session) Evaluate(req EvaluateRequest) models.Report {
	analysis, result, suggestions := evaluate(req)

	s.mu.Lock()
	entry := s.recordSuggestion(result)
	stats := s.statsLocked()
	s.mu.Unlock()
	s.notify(entry)

	report := BuildReport(analysis, result.Recommendation, suggestions, stats, s.now())
	report.SessionID = s.id
	report.Discard = req.Discard
	report.WildCard = req.WildCard
	return report
}

// UpdateScores overwrites both tallies.
func (s *Session) UpdateScores(user, opponent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores.User = user
	s.scores.Opponent = opponent
	s.logger.Debug("scores updated", zap.Int("user", user), zap.Int("opponent", opponent))
}

// Reset starts a new game. Scores carry over; the round counter advances and
// the log restarts with a reset entry.
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = initialGameState()
	s.actionLog = make([]models.LogEntry, 0, ActionLogCapacity)
	s.lastAction = nil
	s.scores.RoundsPlayed++
	entry := s.logAction(models.LogEntry{Kind: models.LogKindReset, Note: "New game started"})
	rounds := s.scores.RoundsPlayed
	s.mu.Unlock()

	s.logger.Info("session reset", zap.Int("rounds_played", rounds))
	s.notify(entry)
}

func (s *Session) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// ActionLog returns a copy of the log, oldest entry first.
func (s *Session) ActionLog() []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LogEntry, len(s.actionLog))
	copy(out, s.actionLog)
	return out
}

func (s *Session) statsLocked() models.Stats {
	stats := models.Stats{
		GameState:    s.state,
		Scores:       s.scores,
		ActionsCount: len(s.actionLog),
	}
	if s.lastAction != nil {
		last := *s.lastAction
		ts := last.Timestamp
		stats.LastAction = &last
		stats.LastActionTime = &ts
	}
	return stats
}

func (s *Session) notify(entry models.LogEntry) {
	if s.onAction != nil {
		s.onAction(entry)
	}
}

func (s *Session) recordSuggestion(result Result) models.LogEntry {
	rec := result.Recommendation
	inputs := result.Inputs
	entry := models.LogEntry{
		Kind:           models.LogKindSuggestion,
		Recommendation: &rec,
		Inputs:         &inputs,
		Fallback:       result.Fallback,
	}
	if result.Err != nil {
		entry.Note = result.Err.Error()
		s.logger.Warn("recommendation fell back to default", zap.Error(result.Err))
	}
	return s.logAction(entry)
}

// logAction stamps entry, appends it and trims the log. Caller holds s.mu.
func (s *Session) logAction(entry models.LogEntry) models.LogEntry {
	entry.ID = uuid.NewString()
	entry.Timestamp = s.now()
	entry.Turn = s.state.CurrentTurn
	entry.Round = s.state.RoundNumber

	s.actionLog = append(s.actionLog, entry)
	if len(s.actionLog) > ActionLogCapacity {
		trimmed := make([]models.LogEntry, ActionLogCapacity)
		copy(trimmed, s.actionLog[len(s.actionLog)-ActionLogCapacity:])
		s.actionLog = trimmed
	}
	last := s.actionLog[len(s.actionLog)-1]
	s.lastAction = &last
	return last
}
