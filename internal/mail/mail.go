// Package mail delivers one-time passcodes to whitelisted admins.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers a one-time code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// Subject is the subject line of every passcode message.
const Subject = "Your admin sign-in code"

// Body renders the plain-text passcode message.
func Body(code string, ttl time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your one-time sign-in code is: %s\n\n", code)
	fmt.Fprintf(&b, "It expires in %d minutes and can be used once.\n", int(ttl.Minutes()))
	b.WriteString("If you did not request this code you can ignore this message.\n")
	return b.String()
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of "starttls" (default), "tls" for implicit TLS, or "none".
	TLS     string
	Timeout time.Duration
}

// SMTPSender sends passcodes through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender validates cfg and returns a sender. No connection is made
// until the first message.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	switch strings.ToLower(s.cfg.TLS) {
	case "tls":
		opts = append(opts, gomail.WithSSL())
	case "none":
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// SendOTP builds and sends the passcode message.
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(gomail.TypeTextPlain, Body(code, ttl))

	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

// LogSender writes passcodes to the log instead of sending them. It is
// meant for local development where no SMTP relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

// SendOTP logs the code at Warn so it stands out in development output.
func (s LogSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("otp delivery disabled, logging code instead",
		"to", to, "code", code, "expires_in", ttl.String())
	return nil
}
