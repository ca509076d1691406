package observability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StreamPublisher is the sink mirrored websocket events are written to.
type StreamPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error
}

// EventMirror copies websocket lifecycle and error events onto a topic
// exchange for the ops tooling. Strictly best-effort: chat and presence
// flows never wait on it.
type EventMirror struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewEventMirror dials AMQP and declares the topic exchange.
func NewEventMirror(url, exchange string) (*EventMirror, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventMirror{conn: conn, channel: ch, exchange: exchange}, nil
}

func (m *EventMirror) PublishJSON(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	amqpHeaders := amqp.Table{}
	for key, value := range headers {
		amqpHeaders[key] = value
	}

	return m.channel.PublishWithContext(ctx, m.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqpHeaders,
	})
}

func (m *EventMirror) Close() error {
	if m.channel != nil {
		_ = m.channel.Close()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

var mirror StreamPublisher

// SetEventMirror installs the process-wide mirror. Leaving it unset keeps
// mirroring disabled.
func SetEventMirror(publisher StreamPublisher) {
	mirror = publisher
}

// MirrorEvent writes an event through the installed mirror, counting
// failures. A missing mirror is a silent no-op.
func MirrorEvent(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error {
	if mirror == nil {
		return nil
	}

	err := mirror.PublishJSON(ctx, routingKey, event, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
