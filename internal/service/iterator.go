// Package service turns object storage notifications delivered over Kafka
// into loaded objects.
package service

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
)

// Iterator interprets each message as a MinIO notification, loads every
// referenced object and yields it. It does not own the message source.
type Iterator[T any] struct {
	msgIterator MessageIterator
	loader      LoaderFunc[T]
	filter      KeyFilter
}

// NewIterator builds an iterator; a nil filter accepts every key.
func NewIterator[T any](iterator MessageIterator, loader LoaderFunc[T], filter KeyFilter) *Iterator[T] {
	if filter == nil {
		filter = func(string) bool { return true }
	}
	return &Iterator[T]{msgIterator: iterator, loader: loader, filter: filter}
}

// Objects streams loaded objects until the message channel closes or ctx
// is done. Messages that are malformed or only name filtered-out keys are
// committed and skipped. A message whose object fails to load is left
// uncommitted so it is redelivered after a restart.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *FetchedObject[T] {
	out := make(chan *FetchedObject[T])
	go func() {
		defer close(out)
		for {
			var msg kafka.Message
			var ok bool
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-it.msgIterator.Messages():
				if !ok {
					return
				}
			}

			var info notification.Info
			if err := json.Unmarshal(msg.Value, &info); err != nil {
				log.Printf("Error unmarshalling notification at offset %d: %v", msg.Offset, err)
				it.commit(ctx, msg)
				continue
			}

			objects := it.load(ctx, msg, info.Records)
			if len(objects) == 0 {
				continue
			}
			for i, obj := range objects {
				// Only the last object carries the message, so the offset is
				// committed once every record has been handled.
				if i == len(objects)-1 {
					obj.msg, obj.owner = msg, true
				}
				select {
				case out <- obj:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// load returns nil when the message should not be yielded.
func (it *Iterator[T]) load(ctx context.Context, msg kafka.Message, records []notification.Event) []*FetchedObject[T] {
	var objects []*FetchedObject[T]
	for _, event := range records {
		key, err := url.QueryUnescape(event.S3.Object.Key)
		if err != nil {
			log.Printf("Error decoding object key '%s': %v", event.S3.Object.Key, err)
			continue
		}
		if !it.filter(key) {
			continue
		}
		data, err := it.loader(ctx, event.S3.Bucket.Name, key)
		if err != nil {
			log.Printf("Error loading object '%s': %v", key, err)
			return nil
		}
		objects = append(objects, &FetchedObject[T]{
			Data:   data,
			Event:  event,
			Bucket: event.S3.Bucket.Name,
			Key:    key,
		})
	}
	if len(objects) == 0 {
		log.Printf("No importable objects in message at offset %d", msg.Offset)
		it.commit(ctx, msg)
	}
	return objects
}

// Commit acknowledges the message behind obj. It is a no-op for all but the
// last object of a multi-record message.
func (it *Iterator[T]) Commit(ctx context.Context, obj *FetchedObject[T]) error {
	if !obj.owner {
		return nil
	}
	return it.msgIterator.CommitOffset(ctx, obj.msg)
}

func (it *Iterator[T]) commit(ctx context.Context, msg kafka.Message) {
	if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
		log.Printf("Failed to commit offset: %v", err)
	}
}
