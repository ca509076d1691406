package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/db"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Message, error)
	MarkReadBySender(ctx context.Context, sessionID, senderID string) (int64, error)
	PurgeBySession(ctx context.Context, sessionID string) (int64, error)
}

// MessageRepo is a MongoDB-backed repository.
type MessageRepo struct {
	coll *mongo.Collection
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(database *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: database.Collection(db.MessagesCollection)}
}

// Create stores a message. The caller supplies Seq, already allocated from
// the session's counter.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListBySession returns the session's messages in sequence order.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkReadBySender flips is_read on every unread message from the given
// sender. Idempotent: a second call with no new messages matches nothing.
func (r *MessageRepo) MarkReadBySender(ctx context.Context, sessionID, senderID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"session_id": sessionID, "sender_id": senderID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PurgeBySession removes all messages of a session. Only used once both
// parties have soft-deleted the session.
func (r *MessageRepo) PurgeBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
