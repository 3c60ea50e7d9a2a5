package engine

import (
	"time"

	"rummy-engine/models"
)

// BuildReport assembles the transport-facing record for one evaluation.
func BuildReport(analysis models.Analysis, rec models.Recommendation, suggestions []string, stats models.Stats, at time.Time) models.Report {
	sequences := make([][]string, len(analysis.Sequences))
	for i, m := range analysis.Sequences {
		sequences[i] = m.Tokens()
	}
	sets := make([][]string, len(analysis.Sets))
	for i, m := range analysis.Sets {
		sets[i] = m.Tokens()
	}

	return models.Report{
		Hand:                 models.CardStrings(analysis.Hand),
		Melds:                analysis.MeldTokens(),
		Sequences:            sequences,
		Sets:                 sets,
		FloatingCards:        analysis.FloatingTokens(),
		Malformed:            analysis.Malformed,
		CompletionPercentage: analysis.CompletionPercentage,
		CanDeclare:           analysis.CanDeclare,
		Recommendation:       rec,
		Suggestions:          suggestions,
		MeldSummary:          analysis.Summary(),
		Stats: models.ReportStats{
			Scores:       stats.Scores,
			RoundNumber:  stats.GameState.RoundNumber,
			ActionsCount: stats.ActionsCount,
		},
		Timestamp: at,
	}
}

// EvaluateHand produces a report for a single hand without touching any
// session state.
func EvaluateHand(req EvaluateRequest, at time.Time) (models.Report, Result) {
	analysis, result, suggestions := evaluate(req)
	report := BuildReport(analysis, result.Recommendation, suggestions, models.Stats{}, at)
	report.Discard = req.Discard
	report.WildCard = req.WildCard
	return report, result
}

func evaluate(req EvaluateRequest) (models.Analysis, Result, []string) {
	analysis := AnalyzeTokens(req.Hand)
	result := Suggest(req.Hand, analysis.MeldTokens(), req.Discard, req.WildCard)

	topDiscard := ""
	if len(req.Discard) > 0 {
		topDiscard = req.Discard[len(req.Discard)-1]
	}
	return analysis, result, StrategicSuggestions(analysis, topDiscard, req.WildCard)
}
