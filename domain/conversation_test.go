package domain

import (
	"direct-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPair_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	alice, bob := NewID(), NewID()

	ab, err := NewPair(alice, bob)
	req.NoError(err)
	ba, err := NewPair(bob, alice)
	req.NoError(err)

	req.Equal(ab, ba)
	req.Equal(ab.Key(), ba.Key())
	req.True(ab.Has(alice))
	req.True(ab.Has(bob))
	req.Equal(bob, ab.Other(alice))
}

func TestNewPair_Rejects_Same_Or_Empty_Participants(t *testing.T) {
	req := require.New(t)
	alice := NewID()

	_, err := NewPair(alice, alice)
	req.ErrorIs(err, errors.ErrValidation)

	_, err = NewPair(alice, "")
	req.ErrorIs(err, errors.ErrValidation)
}

func TestNewMessage_Validates_Text_And_Sender(t *testing.T) {
	req := require.New(t)
	alice, bob, carol := NewID(), NewID(), NewID()
	pair, err := NewPair(alice, bob)
	req.NoError(err)
	conv := NewConversation(pair, Now())

	_, err = NewMessage(conv, alice, "   ", Now())
	req.ErrorIs(err, errors.ErrValidation)

	_, err = NewMessage(conv, carol, "hello", Now())
	req.ErrorIs(err, errors.ErrValidation)

	msg, err := NewMessage(conv, alice, "  hello  ", Now())
	req.NoError(err)
	req.Equal("hello", msg.Text)
	req.Equal(conv.ID, msg.ConversationID)
	req.False(msg.IsRead)
}

func TestRecord_Keeps_Summary_On_Tail(t *testing.T) {
	req := require.New(t)
	alice, bob := NewID(), NewID()
	pair, _ := NewPair(alice, bob)
	start := Now()
	conv := NewConversation(pair, start)

	// Given a clock that went backwards
	first, err := NewMessage(conv, alice, "first", start.Add(time.Second))
	req.NoError(err)
	conv.Record(first)
	second, err := NewMessage(conv, bob, "second", start)
	req.NoError(err)
	conv.Record(second)

	// Then the timestamps stay non-decreasing and the summary follows the tail
	req.False(second.Timestamp.Before(first.Timestamp))
	req.Equal("second", conv.LastMessage.Text)
	req.Equal(bob, conv.LastMessage.Sender)
	req.True(conv.LastActivity.Equal(second.Timestamp))
	req.Equal(2, conv.MessageCount)
}
