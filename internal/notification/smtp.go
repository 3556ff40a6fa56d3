package notification

import (
	"context"

	"StudentPortal/internal/autherr"

	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	dialer dialer
	from   string
}

func NewSMTPNotifier(host string, port int, user, pass, from string) *SMTPNotifier {
	return &SMTPNotifier{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return autherr.Upstream("smtp.send", err)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if err := n.dialer.DialAndSend(m); err != nil {
		return autherr.Upstream("smtp.send", err)
	}
	return nil
}
