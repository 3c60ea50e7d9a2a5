package models

import "time"

type Action string

const (
	ActionDeclare         Action = "Declare"
	ActionPickFromDeck    Action = "PickFromDeck"
	ActionPickFromDiscard Action = "PickFromDiscard"
)

type Turn string
type GamePhase string

const (
	TurnUser     Turn = "user"
	TurnOpponent Turn = "opponent"
)

const (
	PhasePlaying   GamePhase = "playing"
	PhaseDeclaring GamePhase = "declaring"
	PhaseFinished  GamePhase = "finished"
)

const (
	LogKindSuggestion = "ai_suggestion"
	LogKindReset      = "game_reset"
)

type Recommendation struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type Scores struct {
	User         int `json:"user"`
	Opponent     int `json:"opponent"`
	RoundsPlayed int `json:"roundsPlayed"`
}

type GameState struct {
	CurrentTurn Turn      `json:"currentTurn"`
	RoundNumber int       `json:"roundNumber"`
	Phase       GamePhase `json:"phase"`
}

// SuggestionInputs is the snapshot of signals a recommendation was derived from.
type SuggestionInputs struct {
	HandSize             int     `json:"handSize"`
	CardsInMelds         int     `json:"cardsInMelds"`
	MeldCount            int     `json:"meldCount"`
	CompletionPercentage float64 `json:"completionPercentage"`
	HasPureSequence      bool    `json:"hasPureSequence"`
	DiscardPileSize      int     `json:"discardPileSize"`
	TopDiscard           string  `json:"topDiscard,omitempty"`
	WildCard             string  `json:"wildCard,omitempty"`
}

type LogEntry struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Kind           string            `json:"kind"`
	Turn           Turn              `json:"turn"`
	Round          int               `json:"round"`
	Recommendation *Recommendation   `json:"recommendation,omitempty"`
	Inputs         *SuggestionInputs `json:"inputs,omitempty"`
	Fallback       bool              `json:"fallback,omitempty"`
	Note           string            `json:"note,omitempty"`
}

type Stats struct {
	GameState      GameState  `json:"gameState"`
	Scores         Scores     `json:"scores"`
	ActionsCount   int        `json:"actionsCount"`
	LastAction     *LogEntry  `json:"lastAction,omitempty"`
	LastActionTime *time.Time `json:"lastActionTime,omitempty"`
}
