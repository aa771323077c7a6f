// Package messagingtest provides an in-memory messaging transport for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/diewo77/go-billdesk/internal/messaging"
)

// Recorder keeps every envelope it is asked to send. Setting TextErr or
// DocumentErr makes the matching send fail without recording.
type Recorder struct {
	mu          sync.Mutex
	sent        []messaging.Envelope
	closed      bool
	TextErr     error
	DocumentErr error
}

func (r *Recorder) SendText(_ context.Context, chatID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.TextErr != nil {
		return r.TextErr
	}
	r.sent = append(r.sent, messaging.NewText(chatID, body))
	return nil
}

func (r *Recorder) SendDocument(_ context.Context, chatID string, doc messaging.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DocumentErr != nil {
		return r.DocumentErr
	}
	r.sent = append(r.sent, messaging.NewDocument(chatID, doc))
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Sent returns a copy of the recorded envelopes in send order.
func (r *Recorder) Sent() []messaging.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messaging.Envelope(nil), r.sent...)
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
