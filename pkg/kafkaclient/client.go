package kafkaclient

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the subset of *kafka.Reader the consumer uses.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig selects the topic and consumer group.
type ConsumerConfig struct {
	Broker  string
	Topic   string
	GroupID string
	// StartLast starts a group with no committed offset at the newest message.
	StartLast bool
}

// KafkaConsumer reads a topic in a background goroutine and hands messages
// out on a channel. Offsets are committed explicitly by the caller.
type KafkaConsumer struct {
	reader      KafkaReader
	doneChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	messageChan chan kafka.Message
	retryDelay  time.Duration
}

// NewKafkaConsumer creates a consumer with auto-commit disabled.
func NewKafkaConsumer(cfg ConsumerConfig) (*KafkaConsumer, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.New("kafka consumer needs a broker and a topic")
	}
	start := kafka.FirstOffset
	if cfg.StartLast {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.Broker},
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0,
		StartOffset:    start,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newConsumer(reader), nil
}

func newConsumer(r KafkaReader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      r,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
		retryDelay:  time.Second,
	}
}

// Messages is closed once the consumer stops.
func (kc *KafkaConsumer) Messages() <-chan kafka.Message {
	return kc.messageChan
}

func (kc *KafkaConsumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	log.Printf("Committing offset for topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
	return kc.reader.CommitMessages(ctx, msg)
}

func readerClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}

// StartConsuming begins the read loop. It ends when ctx is done, Stop is
// called or the reader is closed.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messageChan)

		log.Println("Starting Kafka consumer loop...")
		for {
			select {
			case <-ctx.Done():
				log.Println("Context canceled, stopping consumer loop.")
				return
			case <-kc.doneChan:
				log.Println("Shutdown signal received, stopping consumer loop.")
				return
			default:
			}

			msg, err := kc.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || readerClosed(err) {
					return
				}
				log.Printf("Error reading message: %v", err)
				select {
				case <-time.After(kc.retryDelay):
				case <-ctx.Done():
					return
				case <-kc.doneChan:
					return
				}
				continue
			}

			select {
			case kc.messageChan <- msg:
				log.Printf("Message received: topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
			case <-ctx.Done():
				return
			case <-kc.doneChan:
				return
			}
		}
	}()
}

// Stop ends the read loop and closes the reader. It is safe to call twice.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		log.Println("Attempting to stop Kafka consumer...")
		close(kc.doneChan)
		// Closing the reader unblocks a pending ReadMessage.
		if err := kc.reader.Close(); err != nil {
			log.Printf("Failed to close Kafka reader: %v", err)
		}
		kc.wg.Wait()
		log.Println("Kafka consumer stopped gracefully.")
	})
}
