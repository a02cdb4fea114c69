package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender delivers a notification copy by email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends plain-text mail through a relay. No auth: the relay is
// expected to be a local or network-restricted MTA.
type SMTPSender struct {
	Addr string // host:port
	From string
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
