//go:generate go run go.uber.org/mock/mockgen -source=message_index.go -destination=../mocks/mock_message_index.go -package=mocks
package repositories

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

// IMessageIndex is the full-text index over message bodies.
// It is derived data: the conversation store stays the source of truth.
type IMessageIndex interface {
	Index(ctx context.Context, message domain.Message) error
	Search(ctx context.Context, conversationID, text string, offset int) ([]domain.Message, uint64, error)
}

const (
	fieldConversation = "conversation_id"
	fieldSender       = "sender"
	fieldText         = "text"
	fieldTimestamp    = "timestamp"
	fieldID           = "_id"
)

type MessageIndex struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *MessageIndex {
	return &MessageIndex{writer: writer, log: log, pageSize: max(pageSize, 1)}
}

func (i *MessageIndex) Index(_ context.Context, message domain.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(fieldConversation, message.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, message.Sender).StoreValue()).
		AddField(bluge.NewTextField(fieldText, message.Text).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldTimestamp, message.Timestamp).StoreValue())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return errors.Infra("index message", err)
	}
	return nil
}

// Search returns one page of messages of conversationID matching text,
// best match first, with the total number of hits.
func (i *MessageIndex) Search(ctx context.Context, conversationID, text string, offset int) ([]domain.Message, uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, fmt.Errorf("%w: search query must not be empty", errors.ErrValidation)
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, errors.Infra("open index reader", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationID).SetField(fieldConversation)).
		AddMust(bluge.NewMatchQuery(text).SetField(fieldText))
	request := bluge.NewTopNSearch(i.pageSize, query).
		SetFrom(max(offset, 0)).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, errors.Infra("search messages", err)
	}

	messages := make([]domain.Message, 0)
	match, err := iterator.Next()
	for err == nil && match != nil {
		message := domain.Message{ConversationID: conversationID}
		var decodeErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				message.ID = string(value)
			case fieldSender:
				message.Sender = string(value)
			case fieldText:
				message.Text = string(value)
			case fieldTimestamp:
				message.Timestamp, decodeErr = bluge.DecodeDateTime(value)
			}
			return decodeErr == nil
		})
		if err == nil {
			err = decodeErr
		}
		if err != nil {
			break
		}
		message.Timestamp = message.Timestamp.UTC()
		messages = append(messages, message)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, errors.Infra("read search results", err)
	}
	return messages, iterator.Aggregations().Count(), nil
}
