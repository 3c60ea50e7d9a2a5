package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rummy-engine/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

const eventBufferSize = 100

// ActionHook receives every action log entry written by any session. It runs
// synchronously on the calling goroutine, so it must not call back into the
// same session.
type ActionHook func(sessionID string, entry models.LogEntry)

type ManagerOption func(*SessionManager)

// WithActionHook installs a hook that sees every log entry, unlike the event
// channel which may drop under load.
func WithActionHook(hook ActionHook) ManagerOption {
	return func(sm *SessionManager) {
		sm.actionHook = hook
	}
}

type SessionManager struct {
	sessions     map[string]*Session
	mu           sync.RWMutex
	eventChannel chan models.Event
	actionHook   ActionHook
	logger       *zap.Logger
}

func NewSessionManager(logger *zap.Logger, opts ...ManagerOption) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &SessionManager{
		sessions:     make(map[string]*Session),
		eventChannel: make(chan models.Event, eventBufferSize),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

func (sm *SessionManager) newSession(sessionID string) *Session {
	session := NewSession(sessionID, sm.logger)
	if hook := sm.actionHook; hook != nil {
		session.onAction = func(entry models.LogEntry) {
			hook(sessionID, entry)
		}
	}
	return session
}

// CreateSession registers a new session. An empty id gets a generated one.
func (sm *SessionManager) CreateSession(sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[sessionID]; exists {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	sm.sessions[sessionID] = sm.newSession(sessionID)
	sm.logger.Info("session created", zap.String("session_id", sessionID))
	return sessionID, nil
}

// RestoreSession re-registers a session with previously persisted scores,
// including the rounds-played counter.
func (sm *SessionManager) RestoreSession(sessionID string, scores models.Scores) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[sessionID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	session := sm.newSession(sessionID)
	session.scores = scores
	sm.sessions[sessionID] = session
	sm.logger.Info("session restored", zap.String("session_id", sessionID), zap.Int("rounds_played", scores.RoundsPlayed))
	return nil
}

func (sm *SessionManager) DestroySession(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[sessionID]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(sm.sessions, sessionID)
	sm.logger.Info("session destroyed", zap.String("session_id", sessionID))
	return nil
}

func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

func (sm *SessionManager) ListSessions() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (sm *SessionManager) Evaluate(sessionID string, req EvaluateRequest) (models.Report, error) {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return models.Report{}, err
	}

	report := session.Evaluate(req)
	sm.emit(models.Event{Event: models.EventAnalysis, SessionID: sessionID, Data: report})
	return report, nil
}

func (sm *SessionManager) Suggest(sessionID string, hand []string, melds [][]string, discardPile []string, wildCard string) (Result, error) {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return Result{}, err
	}
	return session.Suggest(hand, melds, discardPile, wildCard), nil
}

func (sm *SessionManager) UpdateScores(sessionID string, user, opponent int) error {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return err
	}

	session.UpdateScores(user, opponent)
	sm.emit(models.Event{Event: models.EventScores, SessionID: sessionID, Data: session.Stats().Scores})
	return nil
}

func (sm *SessionManager) Reset(sessionID string) error {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return err
	}

	session.Reset()
	sm.emit(models.Event{Event: models.EventReset, SessionID: sessionID, Data: session.Stats()})
	return nil
}

func (sm *SessionManager) Stats(sessionID string) (models.Stats, error) {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return models.Stats{}, err
	}
	return session.Stats(), nil
}

func (sm *SessionManager) GetEventChannel() <-chan models.Event {
	return sm.eventChannel
}

// emit never blocks the caller; events are dropped when nobody drains the
// channel.
func (sm *SessionManager) emit(event models.Event) {
	select {
	case sm.eventChannel <- event:
	default:
		sm.logger.Warn("event channel full, dropping event",
			zap.String("event", event.Event),
			zap.String("session_id", event.SessionID))
	}
}
