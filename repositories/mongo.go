package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationCollection = "conversations"
	userCollection         = "users"
)

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize int
	MaxRetry    int
}

// ConnectMongo opens a client and pings it, retrying while the server
// is not reachable yet. The returned database has its indexes ensured.
func ConnectMongo(ctx context.Context, config MongoConfig, log *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(config.URI)
	if config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(config.MaxPoolSize))
	}
	retries := max(config.MaxRetry, 1)

	var (
		client *mongo.Client
		err    error
	)
	for i := 0; i < retries; i++ {
		client, err = connectMongo(ctx, opts)
		if err == nil {
			break
		}
		log.Warn("MongoDB not reachable", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Second / 2):
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	if err = EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, db, nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on.
// The unique pairKey index is what keeps one conversation per pair.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	collections := map[string][]mongo.IndexModel{
		conversationCollection: {
			{
				Keys:    bson.D{{Key: "pairKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_pair"),
			},
			{
				Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "lastActivity", Value: -1}},
				Options: options.Index().SetName("ix_participant_activity"),
			},
		},
		userCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_email"),
			},
		},
	}
	for name, indexes := range collections {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
