package kafkaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the publisher uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON events to one topic.
type Publisher struct {
	writer KafkaWriter
	topic  string
}

func NewPublisher(broker, topic string) (*Publisher, error) {
	if broker == "" || topic == "" {
		return nil, errors.New("kafka publisher needs a broker and a topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, topic: topic}, nil
}

// PublishJSON marshals v and writes it keyed by key.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	log.Printf("Published event '%s' to topic '%s'", key, p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
