package mail

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSMTP(t *testing.T) {
	if _, err := NewSMTP(SMTPConfig{Host: "localhost"}); !errors.Is(err, ErrSMTPHostPortRequired) {
		t.Fatalf("missing port: %v", err)
	}
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 1025})
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	if s.addr != "localhost:1025" || s.cfg.Timeout != defaultSMTPTimeout {
		t.Fatalf("addr=%q timeout=%v", s.addr, s.cfg.Timeout)
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := newEnvelope(Message{
		From: "GoVault Security <security@govault.local>",
		To:   []string{"Ana <ana@example.com>"},
		Cc:   []string{"ANA@example.com"},
		Bcc:  []string{"audit@example.com"},
	})
	if err != nil {
		t.Fatalf("newEnvelope: %v", err)
	}
	if env.from != "security@govault.local" {
		t.Fatalf("from = %q", env.from)
	}
	if len(env.rcpts) != 2 || env.rcpts[0] != "ana@example.com" || env.rcpts[1] != "audit@example.com" {
		t.Fatalf("rcpts = %v", env.rcpts)
	}

	if _, err := newEnvelope(Message{To: []string{"a@b.c"}}); !errors.Is(err, ErrSMTPNoSender) {
		t.Fatalf("no sender: %v", err)
	}
	if _, err := newEnvelope(Message{From: "a@b.c"}); !errors.Is(err, ErrSMTPNoRecipients) {
		t.Fatalf("no recipients: %v", err)
	}
	if _, err := newEnvelope(Message{From: "a@b.c", To: []string{"not an address"}}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCompose(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("plain", func(t *testing.T) {
		raw, err := compose(Message{From: "a@b.c", To: []string{"x@y.z"}, Bcc: []string{"hidden@y.z"}, Subject: "New sign-in", TextBody: "hi"}, now)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		s := string(raw)
		if !strings.Contains(s, "Content-Type: text/plain; charset=UTF-8\r\n\r\nhi") {
			t.Fatalf("body missing:\n%s", s)
		}
		if strings.Contains(s, "hidden@y.z") {
			t.Fatal("Bcc leaked into headers")
		}
	})

	t.Run("alternative", func(t *testing.T) {
		raw, err := compose(Message{From: "a@b.c", To: []string{"x@y.z"}, Subject: "Ünicode", TextBody: "t", HTMLBody: "<p>h</p>"}, now)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		s := string(raw)
		if !strings.Contains(s, "multipart/alternative; boundary=") || !strings.Contains(s, "<p>h</p>") {
			t.Fatalf("multipart missing:\n%s", s)
		}
		if !strings.Contains(s, "Subject: =?utf-8?q?") {
			t.Fatalf("subject not encoded:\n%s", s)
		}
	})

	t.Run("header injection", func(t *testing.T) {
		_, err := compose(Message{From: "a@b.c", To: []string{"x@y.z"}, Subject: "hi\r\nBcc: evil@x.y"}, now)
		if !errors.Is(err, ErrHeaderInjection) {
			t.Fatalf("err = %v", err)
		}
	})
}
