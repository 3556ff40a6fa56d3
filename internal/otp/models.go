package otp

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Code is a one-time password-recovery code bound to an email address.
type Code struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Code      string             `bson:"code"`
	Role      string             `bson:"role"` // role of the account the code was issued for
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Live reports whether the code is still usable at t.
func (c *Code) Live(t time.Time) bool { return t.Before(c.ExpiresAt) }
