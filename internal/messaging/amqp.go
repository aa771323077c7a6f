package messaging

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeType     = "topic"
	dialAttempts     = 5
	dialRetryBackoff = 2 * time.Second
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPTransport publishes envelopes to a RabbitMQ topic exchange with
// routing key chat.<kind>.
type AMQPTransport struct {
	sender
	conn     io.Closer
	ch       amqpChannel
	exchange string
}

// DialAMQP connects to RabbitMQ, retrying while the broker starts, and
// declares the exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQPTransport, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq dial failed", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(dialRetryBackoff)
	}
	if err != nil {
		return nil, errors.Wrap(err, "connect rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open rabbitmq channel")
	}
	if err := ch.ExchangeDeclare(exchange, ExchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return newAMQPTransport(conn, ch, exchange), nil
}

func newAMQPTransport(conn io.Closer, ch amqpChannel, exchange string) *AMQPTransport {
	t := &AMQPTransport{conn: conn, ch: ch, exchange: exchange}
	t.sender = sender{publish: t.publish}
	return t
}

// RoutingKey returns the routing key used for k.
func RoutingKey(k Kind) string { return "chat." + string(k) }

func (t *AMQPTransport) publish(ctx context.Context, env Envelope) error {
	body, err := env.encode()
	if err != nil {
		return err
	}
	err = t.ch.PublishWithContext(ctx, t.exchange, RoutingKey(env.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.SentAt,
		Body:         body,
	})
	return errors.Wrapf(err, "publish %s to %s", env.Kind, t.exchange)
}

func (t *AMQPTransport) Close() error {
	var errs []error
	if t.ch != nil {
		errs = append(errs, t.ch.Close())
	}
	if t.conn != nil {
		errs = append(errs, t.conn.Close())
	}
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "close rabbitmq")
		}
	}
	return nil
}
