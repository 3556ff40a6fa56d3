package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Collection names.
const (
	UsersCollection            = "users"
	OTPCollection              = "otps"
	RecoverySessionsCollection = "recovery_sessions"
	DeliveriesCollection       = "deliveries"

	deliveryRetention = 30 * 24 * time.Hour
)

// NewMongoDatabase connects, pings and prepares indexes. The client is
// disconnected when the fx application stops.
func NewMongoDatabase(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	db := client.Database(cfg.MongoDatabase)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing MongoDB connection")
			return client.Disconnect(ctx)
		},
	})
	return db, nil
}

// EnsureIndexes creates the unique and TTL indexes the credential store
// relies on. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}

	// One live code per email; the store expires the rest.
	otps := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}
	if _, err := db.Collection(OTPCollection).Indexes().CreateMany(ctx, otps); err != nil {
		return fmt.Errorf("create otps indexes: %w", err)
	}

	sessions := []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}
	if _, err := db.Collection(RecoverySessionsCollection).Indexes().CreateMany(ctx, sessions); err != nil {
		return fmt.Errorf("create recovery_sessions indexes: %w", err)
	}

	deliveries := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(deliveryRetention / time.Second))},
	}
	if _, err := db.Collection(DeliveriesCollection).Indexes().CreateMany(ctx, deliveries); err != nil {
		return fmt.Errorf("create deliveries indexes: %w", err)
	}
	return nil
}
