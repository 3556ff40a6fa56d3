package otp

import (
	"context"
	"errors"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repository persists one-time codes.
type Repository interface {
	// Replace removes every code stored for c.Email, then stores c.
	Replace(ctx context.Context, c *Code) error
	// Consume atomically deletes and returns the code matching email and
	// code that is still live at now. It returns nil, nil on no match.
	Consume(ctx context.Context, email, code string, now time.Time) (*Code, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountLive(ctx context.Context, now time.Time) (int64, error)
}

// A unique index on email turns a lost issuance race into a duplicate-key
// error; the loser deletes again and re-inserts so it ends up the only code.
const maxReplaceAttempts = 5

var errReplaceContended = errors.New("concurrent issuance did not settle")

// MongoRepository stores codes in the otps collection.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(config.OTPCollection)}
}

func (r *MongoRepository) Replace(ctx context.Context, c *Code) error {
	for attempt := 0; attempt < maxReplaceAttempts; attempt++ {
		if _, err := r.collection.DeleteMany(ctx, bson.M{"email": c.Email}); err != nil {
			return autherr.Upstream("otps.delete", err)
		}
		_, err := r.collection.InsertOne(ctx, c)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return autherr.Upstream("otps.insert", err)
		}
	}
	return autherr.Upstream("otps.insert", errReplaceContended)
}

func (r *MongoRepository) Consume(ctx context.Context, email, code string, now time.Time) (*Code, error) {
	filter := bson.M{
		"email":      email,
		"code":       code,
		"expires_at": bson.M{"$gt": now},
	}
	var c Code
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, autherr.Upstream("otps.consume", err)
	}
	return &c, nil
}

func (r *MongoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, autherr.Upstream("otps.sweep", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) CountLive(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"expires_at": bson.M{"$gt": now}})
	if err != nil {
		return 0, autherr.Upstream("otps.count", err)
	}
	return n, nil
}
