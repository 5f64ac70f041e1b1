package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes reconciliation events to a RabbitMQ queue
type AMQPSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

var _ Sink = (*AMQPSink)(nil)

// NewAMQPSink connects to the broker and declares the target queue.
// The queue is durable so events survive a broker restart.
func NewAMQPSink(url, queue string, logger *slog.Logger) (*AMQPSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPSink{
		conn:    conn,
		channel: channel,
		queue:   queue,
		logger:  logger.With(slog.String("system", "notify")),
	}, nil
}

// Notify publishes each event as a persistent JSON message
func (s *AMQPSink) Notify(ctx context.Context, events []Event) error {
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		err = s.channel.PublishWithContext(ctx,
			"",      // exchange
			s.queue, // routing key
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to publish event for record %d: %w", ev.RecordID, err)
		}
	}

	s.logger.Debug("published events", slog.Int("count", len(events)))

	return nil
}

// Close shuts down the channel and connection
func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		_ = s.conn.Close()
		return err
	}
	return s.conn.Close()
}
