package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"homeserve/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitSink publishes events to a durable topic exchange. Routing keys look
// like "booking.statuschanged.confirmed" so consumers can bind narrowly.
type RabbitSink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitSink(url, exchange string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *RabbitSink) Emit(ctx context.Context, event models.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	err = r.ch.PublishWithContext(ctx, r.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// RoutingKey derives the topic key for an event.
func RoutingKey(event models.BookingEvent) string {
	key := "booking." + strings.ToLower(string(event.Kind))
	if event.Kind == models.EventStatusChanged && event.NewStatus != "" {
		key += "." + strings.ReplaceAll(string(event.NewStatus), "-", "_")
	}
	return key
}

func (r *RabbitSink) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
