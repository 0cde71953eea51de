package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewSMTPMailer(host, port, user, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, password: password, from: from}
}

func (m *SMTPMailer) SendOTP(_ context.Context, to, code string) error {
	msg := []byte("To: " + to + "\r\n" +
		"From: " + m.from + "\r\n" +
		"Subject: Your verification code\r\n" +
		"\r\n" +
		"Your verification code is: " + code + "\r\n")

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// LogMailer is used when no SMTP host is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOTP(ctx context.Context, to, code string) error {
	m.log.InfoContext(ctx, "otp email", "to", to, "code", code)
	return nil
}
