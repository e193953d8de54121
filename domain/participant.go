// Package domain contains core concepts of the chat system.
// This file defines the participant pair that identifies a conversation.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"direct-chat/errors"
	"fmt"
)

// Pair is the unordered set of the two participants of a conversation.
// It is always stored sorted so {A,B} and {B,A} compare equal.
type Pair struct {
	First  string
	Second string
}

func NewPair(a, b string) (Pair, error) {
	if a == "" || b == "" {
		return Pair{}, fmt.Errorf("%w: both participants are required", errors.ErrValidation)
	}
	if a == b {
		return Pair{}, fmt.Errorf("%w: a conversation needs two distinct participants", errors.ErrValidation)
	}
	if b < a {
		a, b = b, a
	}
	return Pair{First: a, Second: b}, nil
}

// Key is the pairwise key used to enforce one conversation per pair.
func (p Pair) Key() string {
	return p.First + ":" + p.Second
}

func (p Pair) Has(userID string) bool {
	return userID != "" && (p.First == userID || p.Second == userID)
}

// Other returns the participant that is not userID.
func (p Pair) Other(userID string) string {
	if p.First == userID {
		return p.Second
	}
	return p.First
}

func (p Pair) Slice() []string {
	return []string{p.First, p.Second}
}
