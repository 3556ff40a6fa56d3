package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Recording wraps a Notifier and stores a Delivery for each send. A failure
// to record is logged and never changes the result of Send.
type Recording struct {
	next     Notifier
	repo     Repository
	provider string
	log      *zap.Logger
	now      func() time.Time
}

func NewRecording(next Notifier, repo Repository, provider string, log *zap.Logger) *Recording {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recording{next: next, repo: repo, provider: provider, log: log.Named("mail"), now: time.Now}
}

func (r *Recording) Send(ctx context.Context, to, subject, body string) error {
	sendErr := r.next.Send(ctx, to, subject, body)

	d := &Delivery{
		To:        to,
		Subject:   subject,
		Provider:  r.provider,
		Status:    StatusSent,
		CreatedAt: r.now().UTC(),
	}
	if sendErr != nil {
		d.Status = StatusFailed
		d.Error = sendErr.Error()
	}
	if err := r.repo.Insert(context.WithoutCancel(ctx), d); err != nil {
		r.log.Warn("record delivery", zap.String("to", to), zap.Error(err))
	}
	return sendErr
}
