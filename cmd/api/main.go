// Command api serves the places and census layers over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"worship/internal/api"
	"worship/internal/catalog"
	"worship/internal/classify"
	"worship/internal/env"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/storage"
	"worship/pkg/graceful"
	"worship/pkg/kafkaclient"
)

func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	dataDir := env.GetEnv("DATA_DIR", "data")
	if env.GetEnvBool("SYNC_FROM_BUCKET", false) {
		if err := syncDataDir(ctx, dataDir); err != nil {
			log.Printf("Bucket sync failed, serving local files: %v", err)
		}
	}

	classifier := classify.Default()
	cat, err := catalog.Open(dataDir,
		catalog.WithDatasets(env.GetEnvList("DATASETS", models.Datasets)...),
		catalog.WithClassifier(classifier))
	if err != nil {
		log.Fatalf("Failed to load data from '%s': %v", dataDir, err)
	}

	var places storage.PlaceStore = cat
	if env.GetEnv("PLACES_SOURCE", "file") == "postgres" {
		db, err := storage.NewPostgres(ctx, env.MustGetEnv("DATABASE_URL"))
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		places = db
		log.Println("Serving places from Postgres")
	}

	srv := api.NewServer(places, cat, api.Config{
		CORSOrigins: env.GetEnvList("CORS_ORIGINS", []string{"*"}),
		CacheTTL:    env.GetEnvDuration("CACHE_TTL", api.DefaultCacheTTL),
		Classifier:  classifier,
	})

	go func() {
		if err := cat.Watch(ctx, catalog.DefaultDebounce, srv.FlushCache); err != nil {
			log.Printf("File watcher stopped: %v", err)
		}
	}()

	if topic := env.GetEnv("PLACES_EVENTS_TOPIC", ""); topic != "" {
		consumer, err := kafkaclient.NewKafkaConsumer(kafkaclient.ConsumerConfig{
			Broker:    env.MustGetEnv("KAFKA_BROKER"),
			Topic:     topic,
			GroupID:   instanceGroupID(env.GetEnv("KAFKA_GROUP_ID", "worship-api"), uuid.New()),
			StartLast: true,
		})
		if err != nil {
			log.Fatalf("Failed to create kafka consumer %v", err)
		}
		consumer.StartConsuming(ctx)
		go srv.ConsumeImports(ctx, consumer)
		defer consumer.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + env.GetEnv("PORT", "8080"),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := graceful.Serve(ctx, httpServer, 30*time.Second); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("Main method finished, application exiting.")
}

// instanceGroupID gives every replica its own consumer group so each one sees
// every import event and flushes its own cache.
func instanceGroupID(prefix string, id uuid.UUID) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	host = strings.ToLower(strings.ReplaceAll(host, ".", "-"))
	return fmt.Sprintf("%s-%s-%s", prefix, host, id.String()[:8])
}

// syncDataDir downloads the published web collections, census tables and
// boundaries into dir. Objects missing from the bucket are skipped.
func syncDataDir(ctx context.Context, dir string) error {
	s3Service, err := storage.NewS3Service(storage.S3ConfigFromEnv())
	if err != nil {
		return err
	}
	bucket := env.MustGetEnv("PLACES_BUCKET_NAME")

	files := make(map[string]string)
	for _, ds := range models.Datasets {
		files[keys.Optimized(ds)] = ds + ".geojson"
	}
	for _, level := range catalog.Levels {
		files[keys.Census(level.Name)] = keys.Census(level.Name)
		files[keys.Boundaries(level.Name)] = keys.Boundaries(level.Name)
	}

	for key, rel := range files {
		ok, err := s3Service.Exists(ctx, bucket, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := download(ctx, s3Service, bucket, key, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return err
		}
		log.Printf("Synced '%s' to %s", key, rel)
	}
	return nil
}

// download writes to a temporary file first so the watcher never sees a
// partial file.
func download(ctx context.Context, s3Service *storage.S3Service, bucket, key, path string) error {
	rc, err := s3Service.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sync-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
