package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is the audit record of one outbound message. The body is never
// stored since it carries the one-time code.
type Delivery struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	To        string             `bson:"to" json:"to"`
	Subject   string             `bson:"subject" json:"subject"`
	Provider  string             `bson:"provider" json:"provider"`
	Status    string             `bson:"status" json:"status"`
	Error     string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
