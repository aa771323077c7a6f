package messaging

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport only logs what would be sent. Used in development.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.Named("messaging")}
}

func (t *LogTransport) SendText(_ context.Context, chatID, body string) error {
	t.logger.Info("text message", zap.String("chat_id", chatID), zap.Int("length", len(body)))
	return nil
}

func (t *LogTransport) SendDocument(_ context.Context, chatID string, doc Document) error {
	t.logger.Info("document message",
		zap.String("chat_id", chatID),
		zap.String("ref", doc.Ref),
		zap.String("file_name", doc.FileName),
		zap.Int("size", doc.Size),
	)
	return nil
}

func (t *LogTransport) Close() error { return nil }
