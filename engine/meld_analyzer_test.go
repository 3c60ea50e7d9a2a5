package engine

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rummy-engine/models"
)

func mustHand(t *testing.T, tokens ...string) []models.Card {
	t.Helper()
	hand, malformed := models.ParseHand(tokens)
	require.Empty(t, malformed, "test hand has malformed tokens")
	return hand
}

func meldTokens(melds []models.Meld) [][]string {
	out := make([][]string, len(melds))
	for i, m := range melds {
		out[i] = m.Tokens()
	}
	return out
}

func TestAnalyze_WorkedExample(t *testing.T) {
	hand := mustHand(t, "AS", "2S", "3S", "4H", "4D", "4C", "7D", "8D", "9D", "KH", "QH", "JC", "2C")

	analysis := Analyze(hand)

	assert.Equal(t, [][]string{{"AS", "2S", "3S"}, {"7D", "8D", "9D"}}, meldTokens(analysis.Sequences))
	assert.Equal(t, [][]string{{"4H", "4D", "4C"}}, meldTokens(analysis.Sets))
	assert.Equal(t, []string{"KH", "QH", "JC", "2C"}, analysis.FloatingTokens())
	assert.Equal(t, 9, analysis.CardsInMelds)
	assert.Equal(t, 4, analysis.FloatingCount)
	assert.Equal(t, 69, analysis.CompletionPercentage)
	assert.Equal(t, 3, analysis.TotalValidMelds)
	assert.True(t, analysis.HasPureSequence)
	assert.False(t, analysis.CanDeclare)

	assert.Equal(t, models.Spades, analysis.Sequences[0].Suit)
	assert.Equal(t, models.Diamonds, analysis.Sequences[1].Suit)
	for _, seq := range analysis.Sequences {
		assert.True(t, seq.Pure)
		assert.True(t, seq.Valid)
	}
}

func TestAnalyze_EmptyHand(t *testing.T) {
	analysis := Analyze(nil)

	assert.Empty(t, analysis.Sequences)
	assert.Empty(t, analysis.Sets)
	assert.Empty(t, analysis.Floating)
	assert.Equal(t, 0, analysis.CompletionPercentage)
	assert.Equal(t, 0, analysis.CardsInMelds)
	assert.False(t, analysis.HasPureSequence)
	assert.False(t, analysis.CanDeclare)
}

func TestAnalyze_DeclareAtEightyPercent(t *testing.T) {
	hand := mustHand(t, "AS", "2S", "3S", "4S", "9H", "9D", "9C", "9S", "KD", "5C")

	analysis := Analyze(hand)

	assert.Equal(t, [][]string{{"AS", "2S", "3S", "4S"}}, meldTokens(analysis.Sequences))
	assert.Equal(t, [][]string{{"9H", "9D", "9C", "9S"}}, meldTokens(analysis.Sets))
	assert.Equal(t, 80, analysis.CompletionPercentage)
	assert.True(t, analysis.CanDeclare)
}

func TestAnalyze_NoDeclareAtSeventyNinePercent(t *testing.T) {
	hand := mustHand(t,
		"AS", "2S", "3S", "4S", "5S", "6S", "7S", "8S", "9S", "10S",
		"AH", "2H", "3H", "4H", "5H", "6H",
		"KD", "KC", "KH",
		"QD", "10D", "2C", "4C", "8H",
	)

	analysis := Analyze(hand)

	require.Len(t, hand, 24)
	assert.Equal(t, 19, analysis.CardsInMelds)
	assert.Equal(t, 79, analysis.CompletionPercentage)
	assert.True(t, analysis.HasPureSequence)
	assert.Equal(t, 3, analysis.TotalValidMelds)
	assert.False(t, analysis.CanDeclare)
}

func TestAnalyze_DeclareNeedsPureSequence(t *testing.T) {
	hand := mustHand(t, "9H", "9D", "9C", "KH", "KD", "KC", "5S")

	analysis := Analyze(hand)

	assert.Equal(t, 85, analysis.CompletionPercentage)
	assert.Equal(t, 2, analysis.TotalValidMelds)
	assert.False(t, analysis.HasPureSequence)
	assert.False(t, analysis.CanDeclare)
}

func TestAnalyze_DeclareNeedsTwoMelds(t *testing.T) {
	hand := mustHand(t, "AS", "2S", "3S", "4S", "5S")

	analysis := Analyze(hand)

	assert.Equal(t, 100, analysis.CompletionPercentage)
	assert.Equal(t, 1, analysis.TotalValidMelds)
	assert.False(t, analysis.CanDeclare)
}

func TestDetectSequences_DuplicateRankBreaksRun(t *testing.T) {
	hand := mustHand(t, "7D", "7D", "8D", "9D")

	sequences := DetectSequences(hand)

	require.Len(t, sequences, 1)
	assert.Equal(t, []string{"7D", "8D", "9D"}, sequences[0].Tokens())
	assert.Equal(t, 1, sequences[0].Cards[0].Index)

	analysis := Analyze(hand)
	require.Len(t, analysis.Floating, 1)
	assert.Equal(t, 0, analysis.Floating[0].Index)
	assert.Equal(t, 3, analysis.CardsInMelds)
	assert.Equal(t, 75, analysis.CompletionPercentage)
}

func TestDetectSequences_GreedyRuns(t *testing.T) {
	tests := []struct {
		name string
		hand []string
		want [][]string
	}{
		{"single long run", []string{"7H", "3H", "5H", "4H", "6H"}, [][]string{{"3H", "4H", "5H", "6H", "7H"}}},
		{"two runs in one suit", []string{"AS", "2S", "3S", "5S", "6S", "7S"}, [][]string{{"AS", "2S", "3S"}, {"5S", "6S", "7S"}}},
		{"short run dropped", []string{"AS", "2S", "4S", "5S", "6S"}, [][]string{{"4S", "5S", "6S"}}},
		{"ace is low only", []string{"QC", "KC", "AC"}, [][]string{}},
		{"suits in first-seen order", []string{"9C", "2D", "10C", "3D", "JC", "4D"}, [][]string{{"9C", "10C", "JC"}, {"2D", "3D", "4D"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meldTokens(DetectSequences(mustHand(t, tt.hand...)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectSets(t *testing.T) {
	tests := []struct {
		name string
		hand []string
		want [][]string
	}{
		{"three suits", []string{"8H", "8D", "8C"}, [][]string{{"8H", "8D", "8C"}}},
		{"duplicate suit does not count", []string{"8H", "8H", "8D"}, [][]string{}},
		{"capped at four", []string{"8H", "8D", "8C", "8S", "8H"}, [][]string{{"8H", "8D", "8C", "8S"}}},
		{"duplicate skipped", []string{"8H", "8H", "8D", "8C"}, [][]string{{"8H", "8D", "8C"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meldTokens(DetectSets(mustHand(t, tt.hand...)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyze_SequenceCardNotReusedInSet(t *testing.T) {
	hand := mustHand(t, "5H", "6H", "7H", "7S", "7D")

	require.Len(t, DetectSets(hand), 1, "the set exists when detected on its own")

	analysis := Analyze(hand)
	assert.Equal(t, [][]string{{"5H", "6H", "7H"}}, meldTokens(analysis.Sequences))
	assert.Empty(t, analysis.Sets)
	assert.Equal(t, []string{"7S", "7D"}, analysis.FloatingTokens())
}

func TestAnalyzeTokens_MalformedTokensFloat(t *testing.T) {
	analysis := AnalyzeTokens([]string{"AS", "X", "2S", "1Z", "3S", "BS", ""})

	assert.Equal(t, []string{"X", "1Z", "BS", ""}, analysis.Malformed)
	// one-character noise is dropped, longer misreads stay as floaters
	assert.Equal(t, []string{"AS", "2S", "1Z", "3S", "BS"}, models.CardStrings(analysis.Hand))
	assert.Equal(t, 60, analysis.CompletionPercentage)
	assert.Equal(t, [][]string{{"AS", "2S", "3S"}}, meldTokens(analysis.Sequences))
	assert.Equal(t, 2, analysis.FloatingCount)
	assert.Equal(t, len(analysis.Hand), analysis.CardsInMelds+analysis.FloatingCount)
}

func TestAnalyzeTokens_GarbledCardsBlockDeclare(t *testing.T) {
	analysis := AnalyzeTokens([]string{"AS", "2S", "3S", "9H", "9D", "9C", "XX", "YY"})

	assert.Equal(t, []string{"XX", "YY"}, analysis.Malformed)
	assert.Equal(t, 6, analysis.CardsInMelds)
	assert.Equal(t, 2, analysis.FloatingCount)
	assert.Equal(t, 75, analysis.CompletionPercentage)
	assert.False(t, analysis.CanDeclare)
}

func TestAnalyze_UnplayableCardsFloat(t *testing.T) {
	hand := []models.Card{
		{Rank: models.Ace, Suit: models.Spades},
		{Rank: "Z", Suit: models.Spades},
		{Rank: models.Two, Suit: models.Spades},
		{Rank: models.Three, Suit: "X"},
	}

	analysis := Analyze(hand)

	assert.Empty(t, analysis.Sequences)
	assert.Equal(t, 4, analysis.FloatingCount)
}

func TestAnalyzeTokens_SuitSymbols(t *testing.T) {
	analysis := AnalyzeTokens([]string{"10♥", "J♥", "q♥"})

	assert.Equal(t, [][]string{{"10H", "JH", "QH"}}, meldTokens(analysis.Sequences))
}

func TestIsPureSequence(t *testing.T) {
	tests := []struct {
		name string
		hand []string
		want bool
	}{
		{"run", []string{"3C", "5C", "4C"}, true},
		{"too short", []string{"3C", "4C"}, false},
		{"mixed suits", []string{"3C", "4C", "5D"}, false},
		{"gap", []string{"3C", "4C", "6C"}, false},
		{"duplicate", []string{"3C", "4C", "4C"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPureSequence(mustHand(t, tt.hand...)))
		})
	}
}

func TestAnalyze_PartitionInvariants(t *testing.T) {
	ranks := []models.Rank{models.Ace, models.Two, models.Three, models.Four, models.Five, models.Six,
		models.Seven, models.Eight, models.Nine, models.Ten, models.Jack, models.Queen, models.King}
	suits := []models.Suit{models.Spades, models.Hearts, models.Diamonds, models.Clubs}

	var shoe []models.Card
	for deck := 0; deck < 2; deck++ {
		for _, s := range suits {
			for _, r := range ranks {
				shoe = append(shoe, models.Card{Rank: r, Suit: s})
			}
		}
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		rng.Shuffle(len(shoe), func(a, b int) { shoe[a], shoe[b] = shoe[b], shoe[a] })
		hand := append([]models.Card(nil), shoe[:rng.Intn(15)]...)

		analysis := Analyze(hand)

		require.Equal(t, len(hand), analysis.CardsInMelds+analysis.FloatingCount)

		seen := make(map[int]int)
		for _, m := range analysis.Melds() {
			for _, c := range m.Cards {
				seen[c.Index]++
			}
		}
		for _, c := range analysis.Floating {
			seen[c.Index]++
		}
		require.Len(t, seen, len(hand))
		for idx, n := range seen {
			require.Equalf(t, 1, n, "card %d placed %d times", idx, n)
		}

		for _, seq := range analysis.Sequences {
			require.GreaterOrEqual(t, seq.Len(), 3)
			values := make([]int, 0, seq.Len())
			for _, c := range seq.Cards {
				require.Equal(t, seq.Suit, c.Suit)
				values = append(values, c.Value())
			}
			sort.Ints(values)
			for k := 1; k < len(values); k++ {
				require.Equal(t, values[k-1]+1, values[k])
			}
		}

		for _, set := range analysis.Sets {
			require.GreaterOrEqual(t, set.Len(), 3)
			require.LessOrEqual(t, set.Len(), 4)
			suitsSeen := make(map[models.Suit]bool)
			for _, c := range set.Cards {
				require.Equal(t, set.Rank, c.Rank)
				require.False(t, suitsSeen[c.Suit], "set repeats suit %s", c.Suit)
				suitsSeen[c.Suit] = true
			}
		}

		wantDeclare := analysis.HasPureSequence && analysis.TotalValidMelds >= 2 && analysis.CompletionPercentage >= 80
		require.Equal(t, wantDeclare, analysis.CanDeclare)
	}
}
