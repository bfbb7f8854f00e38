package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicProducts = "product_events"
	TopicOrders   = "order_events"
	TopicUsers    = "user_events"
)

const (
	ProductCreated    = "product.created"
	ProductUpdated    = "product.updated"
	ProductDeleted    = "product.deleted"
	ReviewUpserted    = "review.upserted"
	ReviewDeleted     = "review.deleted"
	OrderCreated      = "order.created"
	OrderStatusChange = "order.status_changed"
	OrderDeleted      = "order.deleted"
	UserRegistered    = "user.registered"
	UserDeleted       = "user.deleted"
)

type Event struct {
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// New returns a Kafka publisher, or a no-op one when no brokers are given.
func New(brokers []string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers)
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, Event) error { return nil }
func (Nop) Close() error                                         { return nil }
