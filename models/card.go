package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Suit string
type Rank string

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

var suitAliases = map[string]Suit{
	"S": Spades, "♠": Spades,
	"H": Hearts, "♥": Hearts,
	"D": Diamonds, "♦": Diamonds,
	"C": Clubs, "♣": Clubs,
}

type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Value is the linear rank order used for runs: A=1 through K=13.
// Unknown ranks return 0.
func (c Card) Value() int {
	return c.Rank.Value()
}

func (r Rank) Value() int {
	switch r {
	case Ace:
		return 1
	case Two:
		return 2
	case Three:
		return 3
	case Four:
		return 4
	case Five:
		return 5
	case Six:
		return 6
	case Seven:
		return 7
	case Eight:
		return 8
	case Nine:
		return 9
	case Ten:
		return 10
	case Jack:
		return 11
	case Queen:
		return 12
	case King:
		return 13
	}
	return 0
}

func (s Suit) Valid() bool {
	switch s {
	case Spades, Hearts, Diamonds, Clubs:
		return true
	}
	return false
}

// IsHighValue reports whether the card is a face card.
func (c Card) IsHighValue() bool {
	return c.Rank == Jack || c.Rank == Queen || c.Rank == King
}

// ParseCard reads a rank-then-suit token such as "10D", "AS" or "7♥".
func ParseCard(token string) (Card, error) {
	token = strings.TrimSpace(token)
	if utf8.RuneCountInString(token) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrTokenTooShort, token)
	}

	last, size := utf8.DecodeLastRuneInString(token)
	suit, ok := suitAliases[strings.ToUpper(string(last))]
	if !ok {
		return Card{}, fmt.Errorf("%w: %q", ErrUnknownSuit, token)
	}

	rank := Rank(strings.ToUpper(token[:len(token)-size]))
	if rank.Value() == 0 {
		return Card{}, fmt.Errorf("%w: %q", ErrUnknownRank, token)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// Unreadable keeps a token that failed to parse as a card that never melds,
// so a misread card still occupies its slot in the hand. Tokens shorter than
// two characters are noise and report false.
func Unreadable(token string) (Card, bool) {
	token = strings.TrimSpace(token)
	if utf8.RuneCountInString(token) < 2 {
		return Card{}, false
	}
	last, size := utf8.DecodeLastRuneInString(token)
	return Card{Rank: Rank(token[:len(token)-size]), Suit: Suit(string(last))}, true
}

// ParseHand parses every token, returning the well-formed cards in order and
// the tokens that could not be parsed.
func ParseHand(tokens []string) ([]Card, []string) {
	cards := make([]Card, 0, len(tokens))
	var malformed []string
	for _, token := range tokens {
		card, err := ParseCard(token)
		if err != nil {
			malformed = append(malformed, token)
			continue
		}
		cards = append(cards, card)
	}
	return cards, malformed
}

func CardStrings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, card := range cards {
		out[i] = card.String()
	}
	return out
}
