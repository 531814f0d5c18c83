package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	TypeAccountLinked   = "account_linked"
	TypeAccountUnlinked = "account_unlinked"
)

// AccountEvent is published whenever a chat links or unlinks a provider account.
type AccountEvent struct {
	Type           string    `json:"type"`
	ChatID         int64     `json:"chat_id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers account events to downstream consumers.
type Publisher interface {
	PublishAccountEvent(ctx context.Context, event AccountEvent) error
	Close() error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewProducer connects a sync producer to brokers. With no brokers it returns
// a publisher that drops events.
func NewProducer(brokers []string, topic string, logger zerolog.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		logger.Info().Msg("Kafka brokers not configured, account events disabled")
		return NopPublisher{}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Kafka producer initialized")
	return NewProducerFrom(producer, topic, logger), nil
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishAccountEvent keys messages by chat so one chat's events stay ordered within a partition.
func (k *KafkaProducer) PublishAccountEvent(ctx context.Context, event AccountEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.ChatID, 10)),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := k.producer.SendMessage(message)
	if err != nil {
		k.logger.Error().Err(err).Str("topic", k.topic).Str("type", event.Type).Msg("Failed to send Kafka message")
		return err
	}

	k.logger.Debug().Str("topic", k.topic).Int32("partition", partition).Int64("offset", offset).Msg("Kafka message sent")
	return nil
}

func (k *KafkaProducer) Close() error {
	if k.producer == nil {
		return nil
	}
	if err := k.producer.Close(); err != nil {
		k.logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishAccountEvent(context.Context, AccountEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
