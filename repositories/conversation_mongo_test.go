package repositories

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// mongoDatabase connects to MONGO_URI with a throwaway database.
// Tests needing it are skipped when no server is configured.
func mongoDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, db, err := ConnectMongo(ctx, MongoConfig{
		URI:      uri,
		Database: "direct_chat_test_" + uuid.NewString()[:8],
		MaxRetry: 1,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestMongoConversationStore(t *testing.T) {
	storeBehaviour(t, func(t *testing.T) IConversationStore {
		return NewMongoConversationStore(mongoDatabase(t), slog.Default())
	})
}

func TestMongoUserRepository(t *testing.T) {
	userBehaviour(t, func(t *testing.T) IUserRepository {
		return NewMongoUserRepository(mongoDatabase(t))
	})
}
