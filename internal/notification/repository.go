package notification

import (
	"context"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, d *Delivery) error
	// Recent returns the newest deliveries first.
	Recent(ctx context.Context, limit int64) ([]*Delivery, error)
}

type DeliveryRepository struct {
	collection *mongo.Collection
}

func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{collection: db.Collection(config.DeliveriesCollection)}
}

func (r *DeliveryRepository) Insert(ctx context.Context, d *Delivery) error {
	if _, err := r.collection.InsertOne(ctx, d); err != nil {
		return autherr.Upstream("deliveries.insert", err)
	}
	return nil
}

func (r *DeliveryRepository) Recent(ctx context.Context, limit int64) ([]*Delivery, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, autherr.Upstream("deliveries.list", err)
	}
	deliveries := []*Delivery{}
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, autherr.Upstream("deliveries.list", err)
	}
	return deliveries, nil
}
