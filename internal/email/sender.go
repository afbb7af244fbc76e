package email

import "context"

// Message is one plain-text email with an optional HTML alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender provides a testable abstraction over SES delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
