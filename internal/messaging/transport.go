// Package messaging delivers chat messages to customers through an outbound
// gateway. Broker-backed transports publish JSON envelopes that the gateway
// turns into chat messages.
package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindText     Kind = "text"
	KindDocument Kind = "document"
)

// Document references an artifact that was stored before sending.
type Document struct {
	Ref      string `json:"ref"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// Envelope is the wire format published to brokers.
type Envelope struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	Kind     Kind      `json:"kind"`
	Body     string    `json:"body,omitempty"`
	Document *Document `json:"document,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

func NewText(chatID, body string) Envelope {
	return Envelope{ID: uuid.NewString(), ChatID: chatID, Kind: KindText, Body: body, SentAt: time.Now().UTC()}
}

func NewDocument(chatID string, doc Document) Envelope {
	return Envelope{ID: uuid.NewString(), ChatID: chatID, Kind: KindDocument, Document: &doc, SentAt: time.Now().UTC()}
}

func (e Envelope) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}
	return b, nil
}

// Transport is a process-wide client of the messaging channel. It is opened
// once at startup and closed on shutdown.
type Transport interface {
	SendText(ctx context.Context, chatID, body string) error
	SendDocument(ctx context.Context, chatID string, doc Document) error
	Close() error
}

// ChatID derives the channel address of a phone number: digits only, followed by suffix.
func ChatID(phone, suffix string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + suffix
}

// sender adapts an envelope publisher to the Send methods of Transport.
type sender struct {
	publish func(ctx context.Context, env Envelope) error
}

func (s sender) SendText(ctx context.Context, chatID, body string) error {
	return s.publish(ctx, NewText(chatID, body))
}

func (s sender) SendDocument(ctx context.Context, chatID string, doc Document) error {
	return s.publish(ctx, NewDocument(chatID, doc))
}
