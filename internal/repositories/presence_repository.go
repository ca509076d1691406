package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/db"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
)

// PresenceRepository persists the presence cache. The in-memory registry is
// the source of truth while the process runs; these records exist for
// subsystems and sweeps that outlive individual connections.
type PresenceRepository interface {
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string, at time.Time) error
	Touch(ctx context.Context, userID string, at time.Time) error
	Get(ctx context.Context, userID string) (models.PresenceStatus, error)
	GetMany(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error)
	FindStaleOnline(ctx context.Context, olderThan time.Time) ([]models.PresenceStatus, error)
}

// PresenceRepo is a MongoDB implementation of PresenceRepository.
type PresenceRepo struct {
	coll *mongo.Collection
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(database *mongo.Database) *PresenceRepo {
	return &PresenceRepo{coll: database.Collection(db.PresenceCollection)}
}

func (r *PresenceRepo) upsert(ctx context.Context, userID string, online bool, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// SetOnline records the user as online.
func (r *PresenceRepo) SetOnline(ctx context.Context, userID string, at time.Time) error {
	return r.upsert(ctx, userID, true, at)
}

// SetOffline records the user as offline.
func (r *PresenceRepo) SetOffline(ctx context.Context, userID string, at time.Time) error {
	return r.upsert(ctx, userID, false, at)
}

// Touch refreshes last_seen without changing the online flag.
func (r *PresenceRepo) Touch(ctx context.Context, userID string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"last_seen": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get returns the persisted status; a user with no record is offline.
func (r *PresenceRepo) Get(ctx context.Context, userID string) (models.PresenceStatus, error) {
	var status models.PresenceStatus
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PresenceStatus{UserID: userID}, nil
	}
	return status, err
}

// GetMany returns persisted statuses for the given users; users without a
// record are omitted and should be treated as offline.
func (r *PresenceRepo) GetMany(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var statuses []models.PresenceStatus
	if err := cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// FindStaleOnline returns users still flagged online whose last_seen is older
// than the given instant. Used by the sweeper to correct crash drift.
func (r *PresenceRepo) FindStaleOnline(ctx context.Context, olderThan time.Time) ([]models.PresenceStatus, error) {
	cursor, err := r.coll.Find(ctx, bson.M{
		"is_online": true,
		"last_seen": bson.M{"$lt": olderThan.UTC()},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var statuses []models.PresenceStatus
	if err := cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
