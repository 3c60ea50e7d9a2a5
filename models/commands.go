package models

import "time"

type Command struct {
	Command string                 `json:"command"`
	Data    map[string]interface{} `json:"data"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Event struct {
	Event     string      `json:"event"`
	SessionID string      `json:"sessionId"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	EventAnalysis = "analysis"
	EventScores   = "scores"
	EventReset    = "reset"
)

// Report is the record handed to transports after every evaluation.
type Report struct {
	SessionID            string         `json:"sessionId,omitempty"`
	Hand                 []string       `json:"hand"`
	Discard              []string       `json:"discard,omitempty"`
	WildCard             string         `json:"wildCard,omitempty"`
	Melds                [][]string     `json:"melds"`
	Sequences            [][]string     `json:"sequences"`
	Sets                 [][]string     `json:"sets"`
	FloatingCards        []string       `json:"floatingCards"`
	Malformed            []string       `json:"malformed,omitempty"`
	CompletionPercentage int            `json:"completionPercentage"`
	CanDeclare           bool           `json:"canDeclare"`
	Recommendation       Recommendation `json:"recommendation"`
	Suggestions          []string       `json:"suggestions"`
	MeldSummary          MeldSummary    `json:"meldSummary"`
	Stats                ReportStats    `json:"stats"`
	Timestamp            time.Time      `json:"timestamp"`
}

type ReportStats struct {
	Scores       Scores `json:"scores"`
	RoundNumber  int    `json:"roundNumber"`
	ActionsCount int    `json:"actionsCount"`
}
