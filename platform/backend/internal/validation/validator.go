package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	rummyModels "rummy-engine/models"
)

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidClientID  = errors.New("invalid client id")
	ErrInvalidRange     = errors.New("value out of valid range")
	ErrStringTooLong    = errors.New("string exceeds maximum length")
	ErrStringTooShort   = errors.New("string below minimum length")
	ErrTooManyCards     = errors.New("too many cards")
	ErrInvalidCard      = errors.New("invalid card")
)

const (
	// two decks plus jokers
	MaxHandSize    = 64
	MaxDiscardSize = 108
	MaxTokenLength = 8
	MaxScore       = 1000000
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSessionID accepts generated UUIDs and caller-chosen slugs
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidSessionID)
	}
	if err := ValidateStringLength(id, 1, 36, "session id"); err != nil {
		return err
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: only letters, numbers, underscore and hyphen are allowed", ErrInvalidSessionID)
	}
	return nil
}

func ValidateClientID(id string) error {
	if err := ValidateStringLength(id, 3, 64, "client id"); err != nil {
		return err
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: only letters, numbers, underscore and hyphen are allowed", ErrInvalidClientID)
	}
	return nil
}

// ValidateCardTokens bounds a token list. Unknown ranks or suits are not
// rejected here; the analyzer reports them as malformed.
func ValidateCardTokens(tokens []string, max int, field string) error {
	if len(tokens) > max {
		return fmt.Errorf("%w: %s holds %d cards, maximum is %d", ErrTooManyCards, field, len(tokens), max)
	}
	for i, token := range tokens {
		if utf8.RuneCountInString(strings.TrimSpace(token)) > MaxTokenLength {
			return fmt.Errorf("%w: %s[%d] exceeds %d characters", ErrStringTooLong, field, i, MaxTokenLength)
		}
	}
	return nil
}

// ValidateWildCard requires a well-formed card when one is given
func ValidateWildCard(token string) error {
	if token == "" {
		return nil
	}
	if _, err := rummyModels.ParseCard(token); err != nil {
		return fmt.Errorf("%w: wild card %q: %v", ErrInvalidCard, token, err)
	}
	return nil
}

// ValidateObservation checks a capture payload before it reaches the engine
func ValidateObservation(hand, discard []string, wildCard string) error {
	if err := ValidateCardTokens(hand, MaxHandSize, "hand"); err != nil {
		return err
	}
	if err := ValidateCardTokens(discard, MaxDiscardSize, "discard"); err != nil {
		return err
	}
	return ValidateWildCard(wildCard)
}

func ValidateScores(user, opponent int) error {
	if err := ValidateIntRange(user, 0, MaxScore, "user score"); err != nil {
		return err
	}
	return ValidateIntRange(opponent, 0, MaxScore, "opponent score")
}

// ValidateIntRange validates integer is within range
func ValidateIntRange(value, min, max int, fieldName string) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidRange, fieldName, min, max)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(value string, minLen, maxLen int, fieldName string) error {
	if len(value) < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrStringTooShort, fieldName, minLen)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrStringTooLong, fieldName, maxLen)
	}
	return nil
}

// SanitizeTokens trims whitespace and drops null bytes and empty entries
func SanitizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(strings.ReplaceAll(token, "\x00", ""))
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}
