// Command importer consumes bucket notifications for extracted place
// collections, enriches them and upserts them into Postgres.
package main

import (
	"context"
	"log"

	"worship/internal/boundary"
	"worship/internal/classify"
	"worship/internal/enrich"
	"worship/internal/env"
	"worship/internal/importer"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/service"
	"worship/internal/storage"
	"worship/pkg/graceful"
	"worship/pkg/kafkaclient"
	"worship/pkg/location"
	"worship/pkg/wikipedia"
)

const userAgent = "worship-map-importer/1.0"

func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	kafkaBroker := env.MustGetEnv("KAFKA_BROKER")
	kafkaTopic := env.MustGetEnv("KAFKA_TOPIC")
	kafkaGroupID := env.MustGetEnv("KAFKA_GROUP_ID")
	bucket := env.MustGetEnv("PLACES_BUCKET_NAME")

	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", kafkaBroker, kafkaTopic, kafkaGroupID)
	consumer, err := kafkaclient.NewKafkaConsumer(kafkaclient.ConsumerConfig{
		Broker:  kafkaBroker,
		Topic:   kafkaTopic,
		GroupID: kafkaGroupID,
	})
	if err != nil {
		log.Fatalf("Failed to create kafka consumer %v", err)
	}

	s3Service, err := storage.NewS3Service(storage.S3ConfigFromEnv())
	if err != nil {
		log.Fatal(err)
	}

	db, err := storage.NewPostgres(ctx, env.MustGetEnv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	var opts []importer.Option
	if topic := env.GetEnv("PLACES_EVENTS_TOPIC", ""); topic != "" {
		publisher, err := kafkaclient.NewPublisher(kafkaBroker, topic)
		if err != nil {
			log.Fatalf("Failed to create kafka publisher %v", err)
		}
		defer publisher.Close()
		opts = append(opts, importer.WithEvents(publisher))
	}
	if env.GetEnvBool("IMPORT_REPORTS", true) {
		opts = append(opts, importer.WithReports(s3Service, bucket))
	}

	pipeline := enrich.NewPlacePipeline(placeSteps(ctx, s3Service, bucket)).
		WithWorkers(env.GetEnvInt("ENRICH_WORKERS", 4))
	im := importer.New(db, pipeline, opts...)

	consumer.StartConsuming(ctx)
	iterator := service.NewIterator(consumer, s3Service.GetPlaceCollection, func(key string) bool {
		_, _, ok := keys.ParseDataset(key)
		return ok
	})
	var fatal error
	for obj := range iterator.Objects(ctx) {
		if _, err := im.Import(ctx, obj.Key, obj.Data); err != nil {
			log.Printf("Failed to import '%s': %v", obj.Key, err)
			if ctx.Err() != nil {
				break
			}
			// Later commits would move the offset past this object, so stop
			// and let it be redelivered after a restart.
			if importer.Retryable(err) {
				fatal = err
				break
			}
		}
		if err := iterator.Commit(ctx, obj); err != nil {
			log.Printf("Failed to commit '%s': %v", obj.Key, err)
		}
	}

	cancel()
	consumer.Stop()
	if fatal != nil {
		log.Fatalf("Stopping without committing: %v", fatal)
	}
	log.Println("Main method finished, application exiting.")
}

// placeSteps picks the enrichment steps the environment enables. Region
// lookup needs the TA boundaries in the bucket and is skipped without them.
func placeSteps(ctx context.Context, s3Service *storage.S3Service, bucket string) enrich.PlaceSteps {
	steps := enrich.PlaceSteps{Classifier: classify.Default()}

	level, _ := boundary.LevelByName(models.LevelTA)
	if rc, err := s3Service.GetObject(ctx, bucket, keys.Boundaries(level.Name)); err != nil {
		log.Printf("Region lookup disabled: %v", err)
	} else {
		set, err := boundary.Decode(rc, level)
		rc.Close()
		if err != nil {
			log.Printf("Region lookup disabled: %v", err)
		} else {
			steps.Regions = set
			log.Printf("Loaded %d %s regions", len(set.Names()), level.Name)
		}
	}

	if env.GetEnvBool("NOMINATIM_ENABLED", false) {
		steps.Geocoder = location.NewClient(userAgent)
	}
	if env.GetEnvBool("WIKIPEDIA_ENABLED", false) {
		steps.Wikipedia = wikipedia.NewClient(userAgent)
	}
	return steps
}
