package engine

import (
	"errors"
	"fmt"

	"rummy-engine/models"
)

const (
	declareConfidence          = 0.9
	keepBuildingConfidence     = 0.7
	helpfulDiscardConfidence   = 0.8
	unhelpfulDiscardConfidence = 0.6
	defaultConfidence          = 0.5
	fallbackConfidence         = 0.3

	keepBuildingThreshold = 60.0
	discardReach          = 2
)

var (
	ErrInconsistentMelds = errors.New("melds hold more cards than the hand")
	ErrSuggestPanic      = errors.New("suggest panicked")
)

// Result is the outcome of a recommendation. When Fallback is set the
// recommendation is the fixed low-confidence default and Err holds the cause.
type Result struct {
	Recommendation models.Recommendation
	Inputs         models.SuggestionInputs
	Fallback       bool
	Err            error
}

var fallbackRecommendation = models.Recommendation{
	Action:     models.ActionPickFromDeck,
	Confidence: fallbackConfidence,
	Reason:     "error",
}

// Suggest applies the decision cascade to a hand and its melds. The first
// matching rule wins:
//
//  1. completion >= 80, a pure sequence and at least two melds: Declare
//  2. completion >= 60: PickFromDeck
//  3. a top discard that relates to the hand: PickFromDiscard
//  4. any other top discard: PickFromDeck
//  5. no discard pile: PickFromDeck
//
// Suggest never fails; contradictory inputs, or a panic while deciding,
// produce the fallback result.
func Suggest(hand []string, melds [][]string, discardPile []string, wildCard string) (result Result) {
	defer fallbackOnPanic(&result)

	inputs, err := collectInputs(hand, melds, discardPile, wildCard)
	if err != nil {
		return Result{
			Recommendation: fallbackRecommendation,
			Inputs:         inputs,
			Fallback:       true,
			Err:            err,
		}
	}
	return Result{Recommendation: decide(inputs, hand), Inputs: inputs}
}

// fallbackOnPanic must be deferred directly. It turns a panic into the
// fallback result, keeping whatever inputs were already collected.
func fallbackOnPanic(result *Result) {
	r := recover()
	if r == nil {
		return
	}
	result.Recommendation = fallbackRecommendation
	result.Fallback = true
	result.Err = fmt.Errorf("%w: %v", ErrSuggestPanic, r)
}

func collectInputs(hand []string, melds [][]string, discardPile []string, wildCard string) (models.SuggestionInputs, error) {
	inputs := models.SuggestionInputs{
		HandSize:        len(hand),
		MeldCount:       len(melds),
		DiscardPileSize: len(discardPile),
		WildCard:        wildCard,
	}
	if len(discardPile) > 0 {
		inputs.TopDiscard = discardPile[len(discardPile)-1]
	}

	for _, meld := range melds {
		inputs.CardsInMelds += len(meld)
		if !inputs.HasPureSequence && isPureSequenceTokens(meld) {
			inputs.HasPureSequence = true
		}
	}
	if inputs.CardsInMelds > inputs.HandSize {
		return inputs, fmt.Errorf("%w: %d melded, %d in hand", ErrInconsistentMelds, inputs.CardsInMelds, inputs.HandSize)
	}

	if inputs.HandSize > 0 {
		inputs.CompletionPercentage = float64(inputs.CardsInMelds) / float64(inputs.HandSize) * 100
	}
	return inputs, nil
}

func decide(in models.SuggestionInputs, hand []string) models.Recommendation {
	switch {
	case in.CompletionPercentage >= declareCompletionThreshold && in.HasPureSequence && in.MeldCount >= declareMinMelds:
		return models.Recommendation{
			Action:     models.ActionDeclare,
			Confidence: declareConfidence,
			Reason:     "High completion with valid melds - ready to declare",
		}
	case in.CompletionPercentage >= keepBuildingThreshold:
		return models.Recommendation{
			Action:     models.ActionPickFromDeck,
			Confidence: keepBuildingConfidence,
			Reason:     "Good progress - continue building melds",
		}
	case in.DiscardPileSize > 0 && cardHelpsMelds(in.TopDiscard, hand):
		return models.Recommendation{
			Action:     models.ActionPickFromDiscard,
			Confidence: helpfulDiscardConfidence,
			Reason:     fmt.Sprintf("Discard card %s helps complete melds", in.TopDiscard),
		}
	case in.DiscardPileSize > 0:
		return models.Recommendation{
			Action:     models.ActionPickFromDeck,
			Confidence: unhelpfulDiscardConfidence,
			Reason:     "Discard doesn't help - try deck",
		}
	default:
		return models.Recommendation{
			Action:     models.ActionPickFromDeck,
			Confidence: defaultConfidence,
			Reason:     "Standard play - pick from deck",
		}
	}
}

// cardHelpsMelds reports whether token shares a rank with a hand card or sits
// within two values of a same-suit hand card. Unparseable tokens never help.
func cardHelpsMelds(token string, hand []string) bool {
	card, err := models.ParseCard(token)
	if err != nil {
		return false
	}

	for _, h := range hand {
		held, err := models.ParseCard(h)
		if err != nil {
			continue
		}
		if held.Suit == card.Suit && abs(held.Value()-card.Value()) <= discardReach {
			return true
		}
		if held.Rank == card.Rank {
			return true
		}
	}
	return false
}

func isPureSequenceTokens(meld []string) bool {
	cards, malformed := models.ParseHand(meld)
	if len(malformed) > 0 {
		return false
	}
	return IsPureSequence(cards)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
