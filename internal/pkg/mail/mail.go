package mail

import (
	"context"
	"io"
)

// Message is a provider-agnostic email. When both bodies are set the
// message goes out as multipart/alternative.
type Message struct {
	From     string // falls back to the sender's default
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail delivers messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
