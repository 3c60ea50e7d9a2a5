package models

type MeldKind string

const (
	MeldSequence MeldKind = "sequence"
	MeldSet      MeldKind = "set"
)

// HandCard is a card together with its position in the hand it was dealt in.
// The position is the card's identity, so duplicate cards from a second deck
// stay distinct.
type HandCard struct {
	Card
	Index int `json:"index"`
}

type Meld struct {
	Kind  MeldKind   `json:"kind"`
	Cards []HandCard `json:"cards"`
	Suit  Suit       `json:"suit,omitempty"`
	Rank  Rank       `json:"rank,omitempty"`
	Pure  bool       `json:"pure"`
	Valid bool       `json:"isValid"`
}

func (m Meld) Len() int {
	return len(m.Cards)
}

func (m Meld) Tokens() []string {
	out := make([]string, len(m.Cards))
	for i, c := range m.Cards {
		out[i] = c.String()
	}
	return out
}

type Analysis struct {
	Hand                 []Card     `json:"hand"`
	Sequences            []Meld     `json:"sequences"`
	Sets                 []Meld     `json:"sets"`
	Floating             []HandCard `json:"floatingCards"`
	Malformed            []string   `json:"malformed,omitempty"`
	CompletionPercentage int        `json:"completionPercentage"`
	HasPureSequence      bool       `json:"hasPureSequence"`
	CanDeclare           bool       `json:"canDeclare"`
	TotalValidMelds      int        `json:"totalValidMelds"`
	CardsInMelds         int        `json:"cardsInMelds"`
	FloatingCount        int        `json:"floatingCount"`
}

// Melds returns sequences followed by sets.
func (a Analysis) Melds() []Meld {
	out := make([]Meld, 0, len(a.Sequences)+len(a.Sets))
	out = append(out, a.Sequences...)
	return append(out, a.Sets...)
}

// MeldTokens flattens every meld into its card tokens.
func (a Analysis) MeldTokens() [][]string {
	melds := a.Melds()
	out := make([][]string, len(melds))
	for i, m := range melds {
		out[i] = m.Tokens()
	}
	return out
}

func (a Analysis) FloatingTokens() []string {
	out := make([]string, len(a.Floating))
	for i, c := range a.Floating {
		out[i] = c.String()
	}
	return out
}

type MeldSummary struct {
	TotalSequences int `json:"totalSequences"`
	TotalSets      int `json:"totalSets"`
	PureSequences  int `json:"pureSequences"`
	CardsInMelds   int `json:"cardsInMelds"`
	FloatingCount  int `json:"floatingCount"`
}

func (a Analysis) Summary() MeldSummary {
	pure := 0
	for _, seq := range a.Sequences {
		if seq.Pure {
			pure++
		}
	}
	return MeldSummary{
		TotalSequences: len(a.Sequences),
		TotalSets:      len(a.Sets),
		PureSequences:  pure,
		CardsInMelds:   a.CardsInMelds,
		FloatingCount:  a.FloatingCount,
	}
}
