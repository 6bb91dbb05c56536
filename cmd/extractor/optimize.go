package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"worship/internal/env"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/osm"
	"worship/internal/storage"
)

var (
	optimizeOutput  string
	optimizeDataset string
	optimizePublish bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <collection.geojson>...",
	Short: "Merge extracted collections into a slim web collection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVarP(&optimizeOutput, "output", "o", "data/churches.geojson", "web collection to write")
	f.StringVar(&optimizeDataset, "dataset", models.DatasetChurches, "dataset name of the web collection")
	f.BoolVar(&optimizePublish, "publish", false, "also upload the result to PLACES_BUCKET_NAME")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	fc, report, err := optimizeFiles(args, optimizeDataset, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(optimizeOutput), 0o755); err != nil {
		return err
	}
	if err := writeJSONFile(optimizeOutput, fc); err != nil {
		return err
	}
	log.Printf("Wrote %d places to %s: %s", fc.Metadata.TotalPlaces, optimizeOutput, report)

	if !optimizePublish {
		return nil
	}
	s3, err := storage.NewS3Service(storage.S3ConfigFromEnv())
	if err != nil {
		return err
	}
	ctx := context.Background()
	bucket := env.MustGetEnv("PLACES_BUCKET_NAME")
	if err := s3.EnsureBucket(ctx, bucket, ""); err != nil {
		return err
	}
	return s3.PutJSON(ctx, bucket, keys.Optimized(optimizeDataset), fc)
}

// optimizeFiles merges the collections at paths, keeping the first place
// seen for each id, and slims them down.
func optimizeFiles(paths []string, dataset string, now time.Time) (*models.PlaceCollection, osm.SizeReport, error) {
	var report osm.SizeReport
	var merged []models.Place
	seen := make(map[string]bool)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, report, err
		}
		info, err := f.Stat()
		if err == nil {
			report.InputBytes += info.Size()
		}
		fc, err := models.DecodePlaceCollection(f)
		f.Close()
		if err != nil {
			return nil, report, fmt.Errorf("%s: %w", path, err)
		}
		places, skipped := fc.Places()
		if skipped > 0 {
			log.Printf("%s: skipped %d unreadable features", path, skipped)
		}
		for _, p := range places {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	meta := osm.OptimizedMetadata
	meta.Dataset = dataset
	meta.ExtractionDate = now.UTC().Format(time.RFC3339)
	meta.TotalPlaces = len(merged)
	out, err := osm.Optimize(merged, meta)
	if err != nil {
		return nil, report, err
	}
	if report.OutputBytes, err = osm.EncodedSize(out); err != nil {
		return nil, report, err
	}
	return out, report, nil
}
