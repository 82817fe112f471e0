// Package mailer delivers notification emails.  Senders are selected at
// startup from MAIL_DRIVER; the notification consumer only sees Sender.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message is a single HTML email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Receipt identifies a delivered message.
type Receipt struct {
	ID string `json:"id"`
}

// Sender delivers a message or returns why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

func (m Message) validate() error {
	if len(m.To) == 0 || strings.TrimSpace(m.To[0]) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("mailer: empty subject")
	}
	return nil
}

// LogSender writes messages to the standard logger instead of sending them.
// Used in development and when no provider is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()
	log.Printf("mailer: [log] id=%s to=%s subject=%q attachments=%d", id, strings.Join(msg.To, ","), msg.Subject, len(msg.Attachments))
	return Receipt{ID: id}, nil
}
