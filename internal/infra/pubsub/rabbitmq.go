package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/service"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one message received from a queue.
type Delivery struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// DeliveryHandler processes a delivery. A nil error acks it; ErrRequeue nacks it for redelivery;
// any other error nacks it without requeue.
type DeliveryHandler func(ctx context.Context, delivery Delivery) error

// ErrRequeue asks the consumer to redeliver the message later.
var ErrRequeue = errors.New("requeue delivery")

// RabbitMQClient wraps a RabbitMQ connection/channel pair bound to one durable queue.
type RabbitMQClient struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQClient dials url and declares queue as durable.
func NewRabbitMQClient(url, queue string) (*RabbitMQClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("rabbitmq queue is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, errors.Wrap(err, "open rabbitmq channel")
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}

	return &RabbitMQClient{conn: conn, channel: ch, queue: queue}, nil
}

// Publish sends a persistent message to the client's queue and returns its message ID.
func (r *RabbitMQClient) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := ulid.Make().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.channel.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", errors.WithStack(err)
	}

	return messageID, nil
}

// Consume delivers messages to handler until ctx is done or the channel closes.
func (r *RabbitMQClient) Consume(ctx context.Context, prefetch int, handler DeliveryHandler) error {
	if prefetch > 0 {
		if err := r.channel.Qos(prefetch, 0, false); err != nil {
			return errors.Wrap(err, "set rabbitmq qos")
		}
	}

	consumerTag := "mailworker-" + ulid.Make().String()
	deliveries, err := r.channel.Consume(r.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "start rabbitmq consumer")
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}

			err := handler(ctx, Delivery{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			})
			switch {
			case err == nil:
				_ = delivery.Ack(false)
			case errors.Is(err, ErrRequeue):
				_ = delivery.Nack(false, true)
			default:
				_ = delivery.Nack(false, false)
			}
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return errors.WithStack(r.conn.Close())
	}

	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}

	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}

	return attrs
}

// QueuePublisher is the publishing half of RabbitMQClient.
type QueuePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Close() error
}

type rabbitMQPublisher struct {
	client QueuePublisher
	logger *slog.Logger
}

// NewRabbitMQPublisher publishes verification events to the client's queue.
func NewRabbitMQPublisher(client QueuePublisher, logger *slog.Logger) service.EventPublisher {
	return &rabbitMQPublisher{client: client, logger: logger}
}

func (p *rabbitMQPublisher) PublishVerificationRequested(ctx context.Context, event *entity.VerificationEvent) error {
	data, attributes, err := encodeEvent(event)
	if err != nil {
		return err
	}

	messageID, err := p.client.Publish(ctx, data, attributes)
	if err != nil {
		return err
	}

	p.logger.Info("[RabbitMQ] Event published",
		slog.String("event_id", event.EventID),
		slog.String("message_id", messageID),
	)

	return nil
}

func (p *rabbitMQPublisher) Close() error {
	return p.client.Close()
}
