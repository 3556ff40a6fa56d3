package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of sending them. Config
// rejects it in prod.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.Named("mail")}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.log.Info("mail (not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
