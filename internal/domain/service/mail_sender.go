package service

import "context"

// Mail is a rendered plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// MailSender delivers rendered mail.
type MailSender interface {
	Send(ctx context.Context, mail *Mail) error
}
