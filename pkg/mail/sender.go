package mail

import (
	"context"
	"time"
)

// Message is a single outbound email. Exactly one of HTML or Text is normally set;
// the notification flow sends the two renderings as separate messages.
type Message struct {
	To      []string
	From    string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
}

// Result identifies an accepted message at the provider.
type Result struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}
