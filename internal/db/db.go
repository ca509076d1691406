package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the repositories.
const (
	SessionsCollection = "chat_sessions"
	MessagesCollection = "chat_messages"
	PresenceCollection = "presence"
)

// Connect initializes the MongoDB connection and ensures indexes.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := client.Database(dbName)
	if err := ensureIndexes(ctx, database); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return database, nil
}

func ensureIndexes(ctx context.Context, database *mongo.Database) error {
	// Sessions are unique per canonical party pair; a duplicate session for
	// the same two companies must be impossible regardless of initiator.
	_, err := database.Collection(SessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "company_a", Value: 1}, {Key: "company_b", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = database.Collection(MessagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = database.Collection(PresenceCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_online", Value: 1}, {Key: "last_seen", Value: 1}},
	})
	if err != nil {
		return err
	}

	log.Println("mongo indexes ensured")
	return nil
}
