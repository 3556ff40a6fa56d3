// Package notification delivers outbound email. The concrete transport is
// chosen by MAIL_PROVIDER; every send is recorded in the deliveries
// collection without its body.
package notification

import (
	"context"
	"fmt"

	"StudentPortal/internal/config"

	"go.uber.org/zap"
)

const (
	ProviderLog    = "log"
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// Notifier sends one message. Failures wrap autherr.ErrUpstreamUnavailable.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New builds the transport named by cfg.MailProvider.
func New(cfg *config.Config, log *zap.Logger) (Notifier, error) {
	switch cfg.MailProvider {
	case ProviderSMTP:
		return NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom), nil
	case ProviderResend:
		return NewResendNotifier(cfg.ResendAPIKey, cfg.MailFrom), nil
	case ProviderLog, "":
		return NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
