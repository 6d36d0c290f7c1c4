package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestBody(t *testing.T) {
	body := Body("012345", 10*time.Minute)
	if !strings.Contains(body, "012345") {
		t.Errorf("body missing code: %q", body)
	}
	if !strings.Contains(body, "10 minutes") {
		t.Errorf("body missing expiry: %q", body)
	}
}

func TestNewSMTPSenderValidates(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "a@b.c"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}); err == nil {
		t.Error("expected error for missing from")
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "folio@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	if s.cfg.Port != 587 {
		t.Errorf("got default port %d, want 587", s.cfg.Port)
	}
	if len(s.clientOptions()) != 3 {
		t.Errorf("got %d client options without auth, want 3", len(s.clientOptions()))
	}
}

func TestSMTPSenderRejectsBadRecipient(t *testing.T) {
	s, _ := NewSMTPSender(SMTPConfig{Host: "smtp.invalid", From: "folio@example.com"})
	if err := s.SendOTP(context.Background(), "not an address", "123456", time.Minute); err == nil {
		t.Error("expected error for malformed recipient")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := s.SendOTP(context.Background(), "admin@example.com", "424242", 10*time.Minute); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "424242") || !strings.Contains(out, "admin@example.com") {
		t.Errorf("log output missing code or recipient: %q", out)
	}
}
