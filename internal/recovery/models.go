package recovery

import "time"

// Stage is where a browser session stands in the password recovery flow.
type Stage string

const (
	// StageIdle is reported when no context is stored for the session.
	StageIdle          Stage = "idle"
	StageAwaitingCode  Stage = "otp-pending"
	StageAwaitingReset Stage = "reset-pending"
)

// Context is the server-held recovery state for one session id. At most one
// exists per session and it always names a single email.
type Context struct {
	ID        string    `bson:"_id"`
	Stage     Stage     `bson:"stage"`
	Email     string    `bson:"email"`
	Role      string    `bson:"role,omitempty"` // set once the code is verified
	ExpiresAt time.Time `bson:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
