package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// publisher is the subset of *amqp.Channel used to publish
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes notifications to a fanout exchange for downstream senders
type AMQPDispatcher struct {
	ch       publisher
	exchange string
	conn     *amqp.Connection
}

// Notification is the message body published on the exchange
type Notification struct {
	Phone   string    `json:"phone"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// DialAMQP connects to the broker and declares the fanout exchange
func DialAMQP(url, exchange string) (*AMQPDispatcher, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url not set")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPDispatcher{ch: ch, exchange: exchange, conn: conn}, nil
}

func (d *AMQPDispatcher) Send(ctx context.Context, phone, message string) Result {
	body, err := json.Marshal(Notification{Phone: phone, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return Result{Error: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = d.ch.PublishWithContext(ctx, d.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"exchange": d.exchange,
			"phone":    phone,
			"error":    err.Error(),
		}).Error("Notification publish failed")
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// Close releases the broker connection
func (d *AMQPDispatcher) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
