package recovery

import (
	"context"
	"errors"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionStore persists recovery contexts. Get and Take ignore contexts
// whose expiry has passed and return nil, nil when nothing matches.
type SessionStore interface {
	Get(ctx context.Context, sid string, now time.Time) (*Context, error)
	Save(ctx context.Context, rc *Context) error
	// Advance moves the live context rc.ID from stage from to rc's stage,
	// role and expiry. It never creates a context: when none is live at from
	// for rc.Email it returns autherr.ErrInvalidFlowState.
	Advance(ctx context.Context, rc *Context, from Stage, now time.Time) error
	// Take atomically removes and returns the live context for sid if it is
	// at stage.
	Take(ctx context.Context, sid string, stage Stage, now time.Time) (*Context, error)
	Delete(ctx context.Context, sid string) error
}

type MongoSessionStore struct {
	collection *mongo.Collection
}

func NewMongoSessionStore(db *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{collection: db.Collection(config.RecoverySessionsCollection)}
}

func (s *MongoSessionStore) Get(ctx context.Context, sid string, now time.Time) (*Context, error) {
	var rc Context
	err := s.collection.FindOne(ctx, bson.M{"_id": sid, "expires_at": bson.M{"$gt": now}}).Decode(&rc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, autherr.Upstream("recovery_sessions.find", err)
	}
	return &rc, nil
}

func (s *MongoSessionStore) Save(ctx context.Context, rc *Context) error {
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": rc.ID}, rc, options.Replace().SetUpsert(true))
	if err != nil {
		return autherr.Upstream("recovery_sessions.save", err)
	}
	return nil
}

func (s *MongoSessionStore) Advance(ctx context.Context, rc *Context, from Stage, now time.Time) error {
	filter := bson.M{
		"_id":        rc.ID,
		"stage":      from,
		"email":      rc.Email,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"stage":      rc.Stage,
		"role":       rc.Role,
		"expires_at": rc.ExpiresAt,
		"updated_at": rc.UpdatedAt,
	}}
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return autherr.Upstream("recovery_sessions.advance", err)
	}
	if res.MatchedCount == 0 {
		return autherr.ErrInvalidFlowState
	}
	return nil
}

func (s *MongoSessionStore) Take(ctx context.Context, sid string, stage Stage, now time.Time) (*Context, error) {
	var rc Context
	filter := bson.M{"_id": sid, "stage": stage, "expires_at": bson.M{"$gt": now}}
	err := s.collection.FindOneAndDelete(ctx, filter).Decode(&rc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, autherr.Upstream("recovery_sessions.take", err)
	}
	return &rc, nil
}

func (s *MongoSessionStore) Delete(ctx context.Context, sid string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": sid}); err != nil {
		return autherr.Upstream("recovery_sessions.delete", err)
	}
	return nil
}
