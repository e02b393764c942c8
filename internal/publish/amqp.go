package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/upgrade"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventContentType = "application/json"

// AMQPChannel is the part of an amqp channel the publisher uses.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher emits one message per acknowledged item transition.
type AMQPPublisher struct {
	channel    AMQPChannel
	exchange   string
	routingKey string
	logger     interfaces.Logger
}

// NewAMQPPublisher creates a publisher for exchange. The routing key gets the
// action appended, e.g. "upgrade.item.transition.retry".
func NewAMQPPublisher(channel AMQPChannel, exchange, routingKey string, logger interfaces.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.Named("amqp-publisher"),
	}
}

// DialAMQP opens a connection and channel and declares a durable topic exchange.
// The caller closes the connection.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return conn, ch, nil
}

// RoutingKey returns the routing key used for event.
func (p *AMQPPublisher) RoutingKey(event upgrade.TransitionEvent) string {
	if event.Action == "" {
		return p.routingKey + ".set"
	}

	return p.routingKey + "." + string(event.Action)
}

// Publish sends event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event upgrade.TransitionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode transition event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, p.RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  eventContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish transition event %s: %w", event.ID, err)
	}

	return nil
}

// TransitionApplied implements upgrade.TransitionListener.
func (p *AMQPPublisher) TransitionApplied(ctx context.Context, event upgrade.TransitionEvent) {
	err := p.Publish(ctx, event)
	if err != nil {
		p.logger.Warnf("%v", err)
	}
}
