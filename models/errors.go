package models

import "errors"

var (
	ErrTokenTooShort = errors.New("card token too short")
	ErrUnknownRank   = errors.New("unknown card rank")
	ErrUnknownSuit   = errors.New("unknown card suit")
)
