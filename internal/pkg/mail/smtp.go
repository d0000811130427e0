package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSMTPHostPortRequired = errors.New("mail: smtp host and port are required")
	ErrSMTPNoRecipients     = errors.New("mail: no recipients")
	ErrSMTPNoSender         = errors.New("mail: no sender")
	ErrHeaderInjection      = errors.New("mail: header value contains a line break")
)

const defaultSMTPTimeout = 10 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds one delivery when the caller's context has no deadline.
	Timeout time.Duration
	// InsecureSkipVerify only applies when the server offers STARTTLS.
	InsecureSkipVerify bool
}

// SMTP speaks SMTP to a single relay, upgrading with STARTTLS when offered.
type SMTP struct {
	cfg  SMTPConfig
	addr string
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" || cfg.Port <= 0 {
		return nil, ErrSMTPHostPortRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}

	return &SMTP{cfg: cfg, addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = s.cfg.From
	}

	env, err := newEnvelope(msg)
	if err != nil {
		return err
	}
	raw, err := compose(msg, time.Now())
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	return s.deliver(ctx, env, raw)
}

func (s *SMTP) deliver(ctx context.Context, env envelope, raw []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", s.addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		//nolint:gosec // opt-in for local relays with self-signed certs
		tc := &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify, MinVersion: tls.VersionTLS12}
		if err := c.StartTLS(tc); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}

	if err := c.Mail(env.from); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	for _, rcpt := range env.rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("mail: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: end DATA: %w", err)
	}

	return c.Quit()
}

func (s *SMTP) Close() error {
	return nil
}

// envelope is the SMTP-level sender and recipient set, bare addresses only.
type envelope struct {
	from  string
	rcpts []string
}

func newEnvelope(msg Message) (envelope, error) {
	if strings.TrimSpace(msg.From) == "" {
		return envelope{}, ErrSMTPNoSender
	}
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return envelope{}, fmt.Errorf("mail: sender %q: %w", msg.From, err)
	}

	env := envelope{from: from.Address}
	seen := make(map[string]struct{})
	for _, list := range [][]string{msg.To, msg.Cc, msg.Bcc} {
		for _, raw := range list {
			addr, err := mail.ParseAddress(raw)
			if err != nil {
				return envelope{}, fmt.Errorf("mail: recipient %q: %w", raw, err)
			}
			key := strings.ToLower(addr.Address)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			env.rcpts = append(env.rcpts, addr.Address)
		}
	}
	if len(env.rcpts) == 0 {
		return envelope{}, ErrSMTPNoRecipients
	}

	return env, nil
}

// compose renders the RFC 5322 message. Bcc never appears in the headers.
func compose(msg Message, now time.Time) ([]byte, error) {
	for _, v := range slices.Concat([]string{msg.From, msg.Subject}, msg.To, msg.Cc) {
		if strings.ContainsAny(v, "\r\n") {
			return nil, ErrHeaderInjection
		}
	}

	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", msg.From)
	header("To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		header("Cc", strings.Join(msg.Cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if msg.TextBody == "" || msg.HTMLBody == "" {
		ctype, body := "text/plain; charset=UTF-8", msg.TextBody
		if msg.HTMLBody != "" {
			ctype, body = "text/html; charset=UTF-8", msg.HTMLBody
		}
		header("Content-Type", ctype)
		buf.WriteString("\r\n")
		buf.WriteString(body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=UTF-8", msg.TextBody},
		{"text/html; charset=UTF-8", msg.HTMLBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
