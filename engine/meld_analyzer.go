package engine

import (
	"sort"

	"rummy-engine/models"
)

const (
	minMeldSize = 3
	maxSetSize  = 4

	declareCompletionThreshold = 80
	declareMinMelds            = 2
)

// DetectSequences returns the pure same-suit runs in hand. Each suit is
// scanned once, left to right, and every maximal run of three or more
// consecutive values becomes a meld. A repeated rank breaks the run.
func DetectSequences(hand []models.Card) []models.Meld {
	return detectSequences(indexHand(hand))
}

// DetectSets returns one set per rank held in at least three distinct suits,
// taking the first card of each suit in hand order, at most four cards.
func DetectSets(hand []models.Card) []models.Meld {
	return detectSets(indexHand(hand))
}

// Analyze partitions hand into melded and floating cards. Sets are formed
// only from cards that no sequence claimed.
func Analyze(hand []models.Card) models.Analysis {
	cards := indexHand(hand)

	sequences := detectSequences(cards)
	used := make(map[int]bool, len(cards))
	markUsed(used, sequences)

	remaining := make([]models.HandCard, 0, len(cards))
	for _, c := range cards {
		if !used[c.Index] {
			remaining = append(remaining, c)
		}
	}
	sets := detectSets(remaining)
	markUsed(used, sets)

	floating := make([]models.HandCard, 0, len(cards)-len(used))
	for _, c := range cards {
		if !used[c.Index] {
			floating = append(floating, c)
		}
	}

	completion := 0
	if len(cards) > 0 {
		completion = 100 * len(used) / len(cards)
	}

	totalValid := 0
	hasPure := false
	for _, m := range sequences {
		if m.Valid {
			totalValid++
		}
		if m.Pure && m.Valid {
			hasPure = true
		}
	}
	for _, m := range sets {
		if m.Valid {
			totalValid++
		}
	}

	return models.Analysis{
		Hand:                 append(make([]models.Card, 0, len(hand)), hand...),
		Sequences:            sequences,
		Sets:                 sets,
		Floating:             floating,
		CompletionPercentage: completion,
		HasPureSequence:      hasPure,
		CanDeclare:           hasPure && totalValid >= declareMinMelds && completion >= declareCompletionThreshold,
		TotalValidMelds:      totalValid,
		CardsInMelds:         len(used),
		FloatingCount:        len(floating),
	}
}

// AnalyzeTokens parses tokens and analyzes the hand. Tokens that do not parse
// are reported in Malformed and never meld; those of two or more characters
// still count as floating cards.
func AnalyzeTokens(tokens []string) models.Analysis {
	hand := make([]models.Card, 0, len(tokens))
	var malformed []string
	for _, token := range tokens {
		card, err := models.ParseCard(token)
		if err == nil {
			hand = append(hand, card)
			continue
		}
		malformed = append(malformed, token)
		if unread, ok := models.Unreadable(token); ok {
			hand = append(hand, unread)
		}
	}

	analysis := Analyze(hand)
	analysis.Malformed = malformed
	return analysis
}

// IsPureSequence reports whether cards form a run of three or more
// consecutive values in one suit.
func IsPureSequence(cards []models.Card) bool {
	if len(cards) < minMeldSize {
		return false
	}

	values := make([]int, len(cards))
	for i, c := range cards {
		if c.Suit != cards[0].Suit || !playable(c) {
			return false
		}
		values[i] = c.Value()
	}

	sort.Ints(values)
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1]+1 {
			return false
		}
	}
	return true
}

func detectSequences(cards []models.HandCard) []models.Meld {
	suitOrder := make([]models.Suit, 0, 4)
	bySuit := make(map[models.Suit][]models.HandCard)
	for _, c := range cards {
		if !playable(c.Card) {
			continue
		}
		if _, ok := bySuit[c.Suit]; !ok {
			suitOrder = append(suitOrder, c.Suit)
		}
		bySuit[c.Suit] = append(bySuit[c.Suit], c)
	}

	sequences := make([]models.Meld, 0)
	for _, suit := range suitOrder {
		group := bySuit[suit]
		if len(group) < minMeldSize {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Value() < group[j].Value()
		})

		run := []models.HandCard{group[0]}
		for _, c := range group[1:] {
			if c.Value() == run[len(run)-1].Value()+1 {
				run = append(run, c)
				continue
			}
			if len(run) >= minMeldSize {
				sequences = append(sequences, newSequence(suit, run))
			}
			run = []models.HandCard{c}
		}
		if len(run) >= minMeldSize {
			sequences = append(sequences, newSequence(suit, run))
		}
	}
	return sequences
}

func detectSets(cards []models.HandCard) []models.Meld {
	rankOrder := make([]models.Rank, 0, 13)
	byRank := make(map[models.Rank][]models.HandCard)
	for _, c := range cards {
		if !playable(c.Card) {
			continue
		}
		if _, ok := byRank[c.Rank]; !ok {
			rankOrder = append(rankOrder, c.Rank)
		}
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}

	sets := make([]models.Meld, 0)
	for _, rank := range rankOrder {
		seen := make(map[models.Suit]bool, 4)
		picked := make([]models.HandCard, 0, maxSetSize)
		for _, c := range byRank[rank] {
			if seen[c.Suit] {
				continue
			}
			seen[c.Suit] = true
			picked = append(picked, c)
			if len(picked) == maxSetSize {
				break
			}
		}
		if len(picked) >= minMeldSize {
			sets = append(sets, models.Meld{
				Kind:  models.MeldSet,
				Cards: picked,
				Rank:  rank,
				Valid: true,
			})
		}
	}
	return sets
}

func newSequence(suit models.Suit, run []models.HandCard) models.Meld {
	cards := make([]models.HandCard, len(run))
	copy(cards, run)
	return models.Meld{
		Kind:  models.MeldSequence,
		Cards: cards,
		Suit:  suit,
		Pure:  true,
		Valid: true,
	}
}

func indexHand(hand []models.Card) []models.HandCard {
	cards := make([]models.HandCard, len(hand))
	for i, c := range hand {
		cards[i] = models.HandCard{Card: c, Index: i}
	}
	return cards
}

func markUsed(used map[int]bool, melds []models.Meld) {
	for _, m := range melds {
		for _, c := range m.Cards {
			used[c.Index] = true
		}
	}
}

// playable filters out cards built by hand with an unknown rank or suit.
func playable(c models.Card) bool {
	return c.Value() > 0 && c.Suit.Valid()
}
