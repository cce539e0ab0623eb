package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/streadway/amqp"
)

const (
	mailQueue  = "mail_queue"
	orderQueue = "order_events"
)

// Publisher pushes mail jobs and order events onto RabbitMQ for external
// workers (mailer, fulfilment). A nil Publisher is valid and drops events, so
// the API keeps working when no broker is configured.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, queue := range []string{mailQueue, orderQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare %s: %w", queue, err)
		}
	}

	log.Println("[NOTIFY] [INFO] RabbitMQ publisher connected")
	return &Publisher{conn: conn, channel: ch}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

type passwordResetJob struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PasswordResetRequested hands the reset token to the mail worker. The token
// is plaintext here by necessity; it never touches the database.
func (p *Publisher) PasswordResetRequested(email, token string, expiresAt time.Time) error {
	return p.publish(mailQueue, passwordResetJob{
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

type orderCreatedEvent struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Publisher) OrderCreated(orderID, userID string, total float64) error {
	return p.publish(orderQueue, orderCreatedEvent{
		OrderID:   orderID,
		UserID:    userID,
		Total:     total,
		CreatedAt: time.Now(),
	})
}

func (p *Publisher) publish(queue string, payload interface{}) error {
	if p == nil || p.channel == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queue, err)
	}

	err = p.channel.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}
