package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCard(t *testing.T) {
	tests := []struct {
		token string
		want  Card
	}{
		{"AS", Card{Rank: Ace, Suit: Spades}},
		{"10D", Card{Rank: Ten, Suit: Diamonds}},
		{"qh", Card{Rank: Queen, Suit: Hearts}},
		{" 7C ", Card{Rank: Seven, Suit: Clubs}},
		{"K♠", Card{Rank: King, Suit: Spades}},
		{"10♦", Card{Rank: Ten, Suit: Diamonds}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseCard(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCard_Errors(t *testing.T) {
	tests := []struct {
		token string
		want  error
	}{
		{"", ErrTokenTooShort},
		{"A", ErrTokenTooShort},
		{"♠", ErrTokenTooShort},
		{"1S", ErrUnknownRank},
		{"11H", ErrUnknownRank},
		{"TD", ErrUnknownRank},
		{"AX", ErrUnknownSuit},
		{"10", ErrUnknownSuit},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := ParseCard(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCard_Value(t *testing.T) {
	assert.Equal(t, 1, Card{Rank: Ace}.Value())
	assert.Equal(t, 10, Card{Rank: Ten}.Value())
	assert.Equal(t, 11, Card{Rank: Jack}.Value())
	assert.Equal(t, 13, Card{Rank: King}.Value())
	assert.Equal(t, 0, Card{Rank: "Z"}.Value())
}

func TestParseHand_KeepsDuplicatesAndOrder(t *testing.T) {
	cards, malformed := ParseHand([]string{"7D", "bad", "7D", "AS"})

	assert.Equal(t, []string{"7D", "7D", "AS"}, CardStrings(cards))
	assert.Equal(t, []string{"bad"}, malformed)
}

func TestUnreadable(t *testing.T) {
	card, ok := Unreadable(" 1Z ")
	require.True(t, ok)
	assert.Equal(t, "1Z", card.String())
	assert.Equal(t, 0, card.Value())
	assert.False(t, card.Suit.Valid())

	card, ok = Unreadable("QX")
	require.True(t, ok)
	assert.Equal(t, "QX", card.String())
	assert.False(t, card.Suit.Valid())

	_, ok = Unreadable("X")
	assert.False(t, ok)
	_, ok = Unreadable("")
	assert.False(t, ok)
}
