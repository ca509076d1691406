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

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository abstracts chat session persistence.
type SessionRepository interface {
	GetOrCreate(ctx context.Context, requester, other, title string) (models.ChatSession, bool, error)
	Get(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListForParty(ctx context.Context, companyID string) ([]models.ChatSession, error)
	SetArchived(ctx context.Context, sessionID, companyID string, archived bool) error
	SoftDelete(ctx context.Context, sessionID, companyID string) (models.ChatSession, error)
	NextSeq(ctx context.Context, sessionID string) (int64, error)
	ApplyMessage(ctx context.Context, sessionID, recipient string, msg models.Message) (int64, error)
	ResetUnread(ctx context.Context, sessionID, companyID string) error
}

// SessionRepo is a MongoDB implementation of SessionRepository.
type SessionRepo struct {
	coll *mongo.Collection
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(database *mongo.Database) *SessionRepo {
	return &SessionRepo{coll: database.Collection(db.SessionsCollection)}
}

// GetOrCreate returns the session for the unordered company pair, creating it
// when none exists. A session soft-deleted by the requester is reactivated for
// the requester instead of duplicated. The second return value reports whether
// a new session was created.
func (r *SessionRepo) GetOrCreate(ctx context.Context, requester, other, title string) (models.ChatSession, bool, error) {
	companyA, companyB := models.CanonicalPair(requester, other)
	filter := bson.M{"company_a": companyA, "company_b": companyB}

	var session models.ChatSession
	err := r.coll.FindOne(ctx, filter).Decode(&session)
	if err == nil {
		if session.DeletedFor(requester) {
			session, err = r.clearDeleted(ctx, session.ID, requester)
			if err != nil {
				return models.ChatSession{}, false, err
			}
		}
		return session, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatSession{}, false, err
	}

	now := time.Now().UTC()
	session = models.ChatSession{
		ID:        primitive.NewObjectID().Hex(),
		CompanyA:  companyA,
		CompanyB:  companyB,
		Title:     title,
		Unread:    map[string]int64{companyA: 0, companyB: 0},
		Archived:  map[string]bool{companyA: false, companyB: false},
		Deleted:   map[string]bool{companyA: false, companyB: false},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, session); err != nil {
		// A concurrent creator won the unique index; fall back to theirs.
		if mongo.IsDuplicateKeyError(err) {
			var existing models.ChatSession
			if err := r.coll.FindOne(ctx, filter).Decode(&existing); err != nil {
				return models.ChatSession{}, false, err
			}
			if existing.DeletedFor(requester) {
				return r.reactivate(ctx, existing.ID, requester)
			}
			return existing, false, nil
		}
		return models.ChatSession{}, false, err
	}
	return session, true, nil
}

func (r *SessionRepo) reactivate(ctx context.Context, sessionID, requester string) (models.ChatSession, bool, error) {
	session, err := r.clearDeleted(ctx, sessionID, requester)
	return session, false, err
}

func (r *SessionRepo) clearDeleted(ctx context.Context, sessionID, companyID string) (models.ChatSession, error) {
	after := options.After
	var session models.ChatSession
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"deleted." + companyID: false, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

// Get fetches a session by id.
func (r *SessionRepo) Get(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

// ListForParty returns sessions visible to the company, newest activity first.
func (r *SessionRepo) ListForParty(ctx context.Context, companyID string) ([]models.ChatSession, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"company_a": companyID},
			bson.M{"company_b": companyID},
		},
		"deleted." + companyID: bson.M{"$ne": true},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SetArchived toggles the per-party archive flag.
func (r *SessionRepo) SetArchived(ctx context.Context, sessionID, companyID string, archived bool) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"archived." + companyID: archived, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SoftDelete marks the session deleted for one party and returns the updated
// session so the caller can detect the terminal both-deleted state.
func (r *SessionRepo) SoftDelete(ctx context.Context, sessionID, companyID string) (models.ChatSession, error) {
	after := options.After
	var session models.ChatSession
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"deleted." + companyID: true, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

// NextSeq atomically allocates the next message sequence number for a session.
func (r *SessionRepo) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	after := options.After
	var session models.ChatSession
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$inc": bson.M{"message_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	return session.MessageSeq, nil
}

// ApplyMessage applies a stored message's side effects to the session: the
// recipient's unread counter is incremented server-side (never read-modify-
// write) and the recipient's archive flag is cleared. The denormalized
// last-message cache is updated only when this message carries the highest
// sequence seen so far, so concurrent sends cannot regress it. Returns the
// recipient's unread count after the increment.
func (r *SessionRepo) ApplyMessage(ctx context.Context, sessionID, recipient string, msg models.Message) (int64, error) {
	after := options.After
	var session models.ChatSession
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$inc": bson.M{"unread." + recipient: 1},
			"$set": bson.M{
				"archived." + recipient: false,
				"updated_at":            time.Now().UTC(),
			},
		},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}

	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": sessionID, "last_message_seq": bson.M{"$lt": msg.Seq}},
		bson.M{"$set": bson.M{
			"last_message_text":   msg.Content,
			"last_message_sender": msg.SenderID,
			"last_message_at":     msg.CreatedAt,
			"last_message_seq":    msg.Seq,
		}},
	)
	if err != nil {
		return 0, err
	}
	return session.UnreadFor(recipient), nil
}

// ResetUnread zeroes the party's unread counter.
func (r *SessionRepo) ResetUnread(ctx context.Context, sessionID, companyID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"unread." + companyID: 0}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}
