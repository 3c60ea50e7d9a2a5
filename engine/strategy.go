package engine

import (
	"fmt"
	"strings"

	"rummy-engine/models"
)

const (
	maxSuggestions       = 4
	floatingWarnAbove    = 3
	gapHintAbove         = 60
	maxHighFloatersShown = 2
)

// StrategicSuggestions turns an analysis into short play hints, most urgent
// first. discard and wildCard are optional tokens; unparseable ones are
// treated as absent for the hints that need a card.
func StrategicSuggestions(analysis models.Analysis, discard, wildCard string) []string {
	suggestions := make([]string, 0, maxSuggestions)

	if !analysis.HasPureSequence {
		suggestions = append(suggestions, "Priority: form at least one pure sequence without wild cards")
	}

	if analysis.FloatingCount > floatingWarnAbove {
		var high []string
		for _, c := range analysis.Floating {
			if playable(c.Card) && c.IsHighValue() {
				high = append(high, c.String())
			}
		}
		if len(high) > maxHighFloatersShown {
			high = high[:maxHighFloatersShown]
		}
		if len(high) > 0 {
			suggestions = append(suggestions, "Consider discarding high-value floaters: "+strings.Join(high, ", "))
		} else {
			suggestions = append(suggestions, "Consider discarding high-value cards")
		}
	}

	if wildCard != "" {
		if analysis.HasPureSequence {
			suggestions = append(suggestions, fmt.Sprintf("Use wild card %s to complete impure sequences or sets", wildCard))
		} else {
			suggestions = append(suggestions, fmt.Sprintf("Hold wild card %s until you form a pure sequence", wildCard))
		}
	}

	if analysis.CanDeclare {
		suggestions = append(suggestions, "Ready to declare: valid melds cover most cards")
	} else if analysis.CompletionPercentage > gapHintAbove {
		gap := 100 - analysis.CompletionPercentage
		suggestions = append(suggestions, fmt.Sprintf("%d%% away from declaration - complete partial melds", gap))
	}

	if discard != "" && discardExtendsFloater(discard, analysis.Floating) {
		suggestions = append(suggestions, fmt.Sprintf("Consider picking %s - it may help a sequence", discard))
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Keep building sequences and sets - good progress")
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func discardExtendsFloater(token string, floating []models.HandCard) bool {
	card, err := models.ParseCard(token)
	if err != nil {
		return false
	}
	for _, c := range floating {
		if playable(c.Card) && c.Suit == card.Suit && abs(c.Value()-card.Value()) <= discardReach {
			return true
		}
	}
	return false
}
