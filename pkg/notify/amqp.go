package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/paulebil/UniHostel/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// amqpNotifier hands rendered emails to a mailer service through RabbitMQ.
type amqpNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  logrus.FieldLogger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewAMQPNotifier(cfg *config.RabbitMQConfig, logger logrus.FieldLogger) (Notifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Объявляем основную очередь
	q, err := channel.QueueDeclare(
		cfg.QueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		amqp.Table{
			"x-queue-mode": "lazy",
		},
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	logger.WithField("queue", q.Name).Info("AMQP notifier connected")
	return &amqpNotifier{conn: conn, channel: channel, queue: q, logger: logger}, nil
}

func (n *amqpNotifier) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(rendered)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(
		ctx,
		"",           // exchange
		n.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         msg.Template,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"to":       rendered.To,
		"template": msg.Template,
	}).Info("Email queued")
	return nil
}

func (n *amqpNotifier) Close() error {
	var errs []error

	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}
