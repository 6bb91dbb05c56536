// Package importer loads published place collections into the database.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"worship/internal/enrich"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/service"
)

// PlaceWriter is the write side of the place database.
type PlaceWriter interface {
	StartImportRun(ctx context.Context, sourceKey, dataset string) (uuid.UUID, error)
	UpsertPlaces(ctx context.Context, runID uuid.UUID, places []models.Place) error
	FinishImportRun(ctx context.Context, id uuid.UUID, places, skipped int, runErr error) error
}

// Publisher announces finished imports.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v interface{}) error
}

// ReportStore keeps one report per import run.
type ReportStore interface {
	PutJSONIfAbsent(ctx context.Context, bucketName, objectKey string, v interface{}) (bool, error)
}

// Importer enriches and stores one collection at a time.
type Importer struct {
	store    PlaceWriter
	pipeline *enrich.Pipeline[models.Place]
	events   Publisher
	reports  ReportStore
	bucket   string
	now      func() time.Time
}

type Option func(*Importer)

// WithEvents publishes a service.DatasetImported after each import.
func WithEvents(p Publisher) Option { return func(im *Importer) { im.events = p } }

// WithReports writes each run's event to reports/<run id>.json in bucket.
func WithReports(r ReportStore, bucket string) Option {
	return func(im *Importer) {
		im.reports = r
		im.bucket = bucket
	}
}

func New(store PlaceWriter, pipeline *enrich.Pipeline[models.Place], opts ...Option) *Importer {
	if pipeline == nil {
		pipeline = enrich.NewPipeline[models.Place]()
	}
	im := &Importer{store: store, pipeline: pipeline, now: time.Now}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

var (
	// ErrUnknownKey is returned for keys that do not name a dataset.
	ErrUnknownKey = errors.New("not a dataset key")

	// ErrRunNotStarted wraps failures that happen before an import run is
	// recorded. Nothing about the object was stored.
	ErrRunNotStarted = errors.New("import run not started")
)

// Retryable reports whether err left no trace of the import, so the
// notification must not be committed.
func Retryable(err error) bool {
	return errors.Is(err, ErrRunNotStarted)
}

// Import enriches the collection stored under key and upserts it under a new
// import run. The run is closed as failed when the upsert fails. Event and
// report failures are logged and do not fail the import.
func (im *Importer) Import(ctx context.Context, key string, fc *models.PlaceCollection) (*service.DatasetImported, error) {
	dataset, cc, ok := keys.ParseDataset(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrUnknownKey)
	}
	places, skipped := fc.Places()
	for i := range places {
		if places[i].Dataset == "" {
			places[i].Dataset = dataset
		}
		if places[i].CountryCode == "" && cc != "" {
			places[i].CountryCode = cc
		}
		places[i].CountryCode = strings.ToUpper(places[i].CountryCode)
	}

	runID, err := im.store.StartImportRun(ctx, key, dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunNotStarted, err)
	}

	start := im.now()
	im.pipeline.ProcessAll(ctx, places)
	if err := ctx.Err(); err != nil {
		im.finish(runID, len(places), skipped, err)
		return nil, err
	}
	log.Printf("Enriched %d places from '%s' in %s", len(places), key, im.now().Sub(start).Round(time.Millisecond))

	if err := im.store.UpsertPlaces(ctx, runID, places); err != nil {
		im.finish(runID, 0, skipped, err)
		return nil, err
	}
	if err := im.store.FinishImportRun(ctx, runID, len(places), skipped, nil); err != nil {
		return nil, err
	}

	ev := &service.DatasetImported{
		RunID:       runID.String(),
		Dataset:     dataset,
		CountryCode: cc,
		SourceKey:   key,
		Places:      len(places),
		Skipped:     skipped,
		ImportedAt:  im.now().UTC(),
	}
	if im.events != nil {
		if err := im.events.PublishJSON(ctx, dataset, ev); err != nil {
			log.Printf("Failed to publish import event for run %s: %v", runID, err)
		}
	}
	if im.reports != nil {
		if _, err := im.reports.PutJSONIfAbsent(ctx, im.bucket, keys.Report(ev.RunID), ev); err != nil {
			log.Printf("Failed to store report for run %s: %v", runID, err)
		}
	}
	log.Printf("Imported %d places (%d skipped) from '%s' as run %s", len(places), skipped, key, runID)
	return ev, nil
}

// finish closes a failed run with a fresh context so cancellation does not
// leave it open.
func (im *Importer) finish(runID uuid.UUID, places, skipped int, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := im.store.FinishImportRun(ctx, runID, places, skipped, runErr); err != nil {
		log.Printf("Failed to close import run %s: %v", runID, err)
	}
}
