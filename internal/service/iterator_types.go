package service

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
)

// MessageIterator is a source of Kafka messages with explicit commits.
// Implementations own the consumer lifecycle and close the channel when done.
type MessageIterator interface {
	Messages() <-chan kafka.Message
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// LoaderFunc loads and decodes the object a notification refers to.
type LoaderFunc[T any] func(ctx context.Context, bucket, key string) (T, error)

// KeyFilter decides whether a notification's object key is worth loading.
type KeyFilter func(key string) bool

// FetchedObject pairs a loaded object with the notification that named it.
// Its message is committed through Iterator.Commit once it has been handled.
type FetchedObject[T any] struct {
	Data   T
	Event  notification.Event
	Bucket string
	Key    string

	msg   kafka.Message
	owner bool
}

// DatasetImported is published after a place collection has been imported.
type DatasetImported struct {
	RunID       string    `json:"run_id"`
	Dataset     string    `json:"dataset"`
	CountryCode string    `json:"country_code,omitempty"`
	SourceKey   string    `json:"source_key"`
	Places      int       `json:"places"`
	Skipped     int       `json:"skipped"`
	ImportedAt  time.Time `json:"imported_at"`
}
