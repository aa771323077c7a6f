package messaging

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport writes envelopes to a Kafka topic keyed by chat id, so one
// customer's messages stay ordered within a partition.
type KafkaTransport struct {
	sender
	w kafkaWriter
}

func NewKafkaTransport(brokers []string, topic string) *KafkaTransport {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaTransport(w)
}

func newKafkaTransport(w kafkaWriter) *KafkaTransport {
	t := &KafkaTransport{w: w}
	t.sender = sender{publish: t.publish}
	return t
}

func (t *KafkaTransport) publish(ctx context.Context, env Envelope) error {
	body, err := env.encode()
	if err != nil {
		return err
	}
	err = t.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.ChatID),
		Value: body,
		Time:  env.SentAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(env.Kind)},
			{Key: "message-id", Value: []byte(env.ID)},
		},
	})
	return errors.Wrapf(err, "write %s message", env.Kind)
}

func (t *KafkaTransport) Close() error {
	return errors.Wrap(t.w.Close(), "close kafka writer")
}
