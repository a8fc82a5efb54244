package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type TransactionEventType string

const (
	TransactionPosted  TransactionEventType = "transaction.posted"
	TransactionUpdated TransactionEventType = "transaction.updated"
	TransactionDeleted TransactionEventType = "transaction.deleted"
)

// TransactionEvent is the notification emitted after a journal change commits.
type TransactionEvent struct {
	Type            TransactionEventType `json:"type"`
	TransactionID   uuid.UUID            `json:"transaction_id"`
	ReferenceNumber string               `json:"reference_number"`
	Date            string               `json:"transaction_date"`
	Total           string               `json:"total"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event TransactionEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish keys messages by transaction id so every event for one
// transaction lands on the same partition in commit order.
func (p *KafkaPublisher) Publish(ctx context.Context, event TransactionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("Publish: marshal: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher when brokers are configured, otherwise a no-op.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
