package repositories

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
)

// Messages of a conversation live under "msg:{conversation_id}:{seq_padded}".
// The sequence is the conversation message count at insertion time, padded
// to 19 digits so that a prefix scan returns them in insertion order.
func messagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func messageKey(conversationID string, seq int) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", conversationID, seq))
}

func putMessage(txn *badger.Txn, conversationID string, seq int, message DiskMessage) error {
	bytes, err := bson.Marshal(message)
	if err != nil {
		return err
	}
	return txn.Set(messageKey(conversationID, seq), bytes)
}

// scanMessages visits every message of a conversation in insertion order.
// visit receives the raw key so callers may rewrite the entry in place.
func scanMessages(txn *badger.Txn, conversationID string, visit func(key []byte, message DiskMessage) error) error {
	prefix := messagePrefix(conversationID)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var message DiskMessage
		err := item.Value(func(value []byte) error {
			return bson.Unmarshal(value, &message)
		})
		if err != nil {
			return err
		}
		if err = visit(item.KeyCopy(nil), message); err != nil {
			return err
		}
	}
	return nil
}
