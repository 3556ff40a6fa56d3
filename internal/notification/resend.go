package notification

import (
	"context"

	"StudentPortal/internal/autherr"

	"github.com/resend/resend-go/v2"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendNotifier sends through the Resend HTTP API.
type ResendNotifier struct {
	emails emailSender
	from   string
}

func NewResendNotifier(apiKey, from string) *ResendNotifier {
	return &ResendNotifier{emails: resend.NewClient(apiKey).Emails, from: from}
}

func (n *ResendNotifier) Send(ctx context.Context, to, subject, body string) error {
	_, err := n.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return autherr.Upstream("resend.send", err)
	}
	return nil
}
