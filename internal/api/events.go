package api

import (
	"context"
	"encoding/json"
	"log"

	"worship/internal/service"
)

// ConsumeImports flushes the response cache on every dataset.imported event
// until the source closes its channel or ctx ends. Undecodable messages are
// committed and skipped.
func (s *Server) ConsumeImports(ctx context.Context, src service.MessageIterator) {
	msgs := src.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev service.DatasetImported
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Printf("Skipping malformed import event at offset %d: %v", msg.Offset, err)
			} else {
				log.Printf("Dataset %s imported (%d places, run %s), flushing response cache", ev.Dataset, ev.Places, ev.RunID)
				s.FlushCache()
			}
			if err := src.CommitOffset(ctx, msg); err != nil {
				log.Printf("Failed to commit offset %d: %v", msg.Offset, err)
			}
		}
	}
}
