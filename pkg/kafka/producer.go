package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulebil/UniHostel/config"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer publishes domain events keyed by aggregate id.
type Producer interface {
	SendMessage(ctx context.Context, key string, message interface{}) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger logrus.FieldLogger
}

// NewProducer connects to the brokers and ensures the topic exists. When
// Kafka is disabled or unreachable a logging producer is returned instead.
func NewProducer(cfg *config.KafkaConfig, logger logrus.FieldLogger) Producer {
	if !cfg.Enabled {
		return &mockProducer{logger: logger}
	}

	brokers := strings.Split(cfg.Brokers, ",")

	// Проверяем подключение и создаем топик
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.WithError(err).Warn("Kafka connection failed, using mock producer instead")
		return &mockProducer{logger: logger}
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.WithError(err).Debug("Could not create topic (might already exist)")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.WithFields(logrus.Fields{"brokers": cfg.Brokers, "topic": cfg.Topic}).Info("Connected to Kafka")
	return &kafkaProducer{writer: writer, topic: cfg.Topic, logger: logger}
}

func (p *kafkaProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", p.topic, err)
	}

	p.logger.WithFields(logrus.Fields{"topic": p.topic, "key": key}).Debug("Message sent")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// mockProducer для работы без Kafka
type mockProducer struct {
	logger logrus.FieldLogger
}

func (m *mockProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	m.logger.WithField("key", key).WithField("message", message).Debug("MOCK: event")
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}
