package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"agency/internal/checkout"
)

// ConfirmedEvent is the message placed on the order-confirmed queue.
type ConfirmedEvent struct {
	Reference   string    `json:"reference"`
	PaymentRef  string    `json:"paymentRef"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	PickupDate  string    `json:"pickupDate"`
	ReturnDate  string    `json:"returnDate"`
	GearIDs     []string  `json:"gearIds"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

func NewConfirmedEvent(o checkout.Order) ConfirmedEvent {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.GearID)
	}
	return ConfirmedEvent{
		Reference:   o.Reference,
		PaymentRef:  o.PaymentRef,
		Email:       o.Customer.Email,
		Name:        o.Customer.Name,
		Total:       o.Total.StringFixed(2),
		Currency:    o.Currency,
		PickupDate:  o.PickupDate.Format(checkout.DateLayout),
		ReturnDate:  o.ReturnDate.Format(checkout.DateLayout),
		GearIDs:     ids,
		ConfirmedAt: o.CreatedAt.UTC(),
	}
}

// Publisher sends order events to RabbitMQ. A connection is opened per
// message; confirmations are rare enough that pooling is not worth the state.
type Publisher struct {
	url   string
	queue string
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

func (p *Publisher) PublishConfirmed(ctx context.Context, ev ConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.Reference,
		Body:         body,
	})
}
