package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyScoreAlertRaised  = "credit.score.alert"
	RoutingKeyTransferCompleted = "account.transfer.completed"
	publisherAppID              = "credit-engine"
)

type EventPublisher interface {
	PublishScoreAlertRaised(ctx context.Context, event ScoreAlertRaisedEvent) error
	PublishTransferCompleted(ctx context.Context, event TransferCompletedEvent) error
}

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type channelOpener func() (amqpChannel, error)

type RabbitMQEventPublisher struct {
	openChannel channelOpener
	exchange    string
	logger      *slog.Logger
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

// NewRabbitMQEventPublisher declares a durable topic exchange and returns a
// publisher that opens a short-lived channel per message.
func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (EventPublisher, error) {
	if conn == nil {
		return nil, errors.New("RabbitMQ connection cannot be nil")
	}
	opener := func() (amqpChannel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	p, err := newPublisher(opener, exchangeName, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(open channelOpener, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if exchangeName == "" {
		return nil, errors.New("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	ch, err := open()
	if err != nil {
		return nil, fmt.Errorf("open channel to declare exchange %q: %w", exchangeName, err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", exchangeName, err)
	}
	logger.Info("RabbitMQ exchange declared", "exchange", exchangeName, "kind", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		openChannel: open,
		exchange:    exchangeName,
		logger:      logger.With("component", "EventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) PublishScoreAlertRaised(ctx context.Context, event ScoreAlertRaisedEvent) error {
	return p.publish(ctx, RoutingKeyScoreAlertRaised, event.EventID, event)
}

func (p *RabbitMQEventPublisher) PublishTransferCompleted(ctx context.Context, event TransferCompletedEvent) error {
	return p.publish(ctx, RoutingKeyTransferCompleted, event.EventID, event)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey, messageID string, payload any) error {
	log := p.logger.With(slog.String("routingKey", routingKey), slog.String("messageId", messageID))

	msg, err := newPublishing(messageID, payload)
	if err != nil {
		log.ErrorContext(ctx, "Event payload could not be encoded", slog.Any("error", err))
		return err
	}

	ch, err := p.openChannel()
	if err != nil {
		log.ErrorContext(ctx, "RabbitMQ channel unavailable", slog.Any("error", err))
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		log.ErrorContext(ctx, "Event publish failed", slog.Any("error", err))
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	log.DebugContext(ctx, "Event published", slog.Int("bodySize", len(msg.Body)))
	return nil
}

func newPublishing(messageID string, payload any) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", messageID, err)
	}
	return amqp.Publishing{
		MessageId:    messageID,
		AppId:        publisherAppID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
