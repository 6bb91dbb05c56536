package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"worship/internal/classify"
	"worship/internal/env"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/osm"
	"worship/internal/overpass"
	"worship/internal/storage"
	"worship/pkg/geo"
	"worship/pkg/graceful"
)

var (
	extractCountries   []string
	extractWorkers     int
	extractDataset     string
	extractOutput      string
	extractCachePath   string
	extractCacheMaxAge time.Duration
	extractNoCache     bool
	extractPublish     bool
	extractTimeout     int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch and convert places for one or more countries",
	Example: `  extractor extract --countries NZ
  extractor extract --countries NZ,AU,FJ --workers 2 --publish`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringSliceVar(&extractCountries, "countries", []string{"NZ"}, "ISO 3166-1 country codes")
	f.IntVar(&extractWorkers, "workers", overpass.DefaultWorkers, "countries fetched concurrently")
	f.StringVar(&extractDataset, "dataset", models.DatasetChurches, "dataset name written into each place")
	f.StringVarP(&extractOutput, "output", "o", "data/raw", "directory for collections and summaries")
	f.StringVar(&extractCachePath, "cache", ".cache/overpass.db", "bbolt file for raw responses")
	f.DurationVar(&extractCacheMaxAge, "cache-max-age", 24*time.Hour, "reuse cached responses younger than this")
	f.BoolVar(&extractNoCache, "no-cache", false, "always query Overpass")
	f.BoolVar(&extractPublish, "publish", false, "also upload collections to PLACES_BUCKET_NAME")
	f.IntVar(&extractTimeout, "query-timeout", osm.DefaultQueryTimeout, "Overpass [timeout:] in seconds")
}

func openCache(path string) (*storage.BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return storage.OpenBoltCache(path)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()
	start := time.Now()

	opts := []overpass.Option{overpass.WithQueryTimeout(extractTimeout)}
	if !extractNoCache {
		cache, err := openCache(extractCachePath)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer cache.Close()
		opts = append(opts, overpass.WithCache(cache, extractCacheMaxAge))
	}
	client := overpass.NewClient(opts...)

	var s3 *storage.S3Service
	var bucket string
	if extractPublish {
		var err error
		if s3, err = storage.NewS3Service(storage.S3ConfigFromEnv()); err != nil {
			return err
		}
		bucket = env.MustGetEnv("PLACES_BUCKET_NAME")
		if err := s3.EnsureBucket(ctx, bucket, ""); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(extractOutput, 0o755); err != nil {
		return err
	}

	countries := geo.NormalizeCountryCodes(extractCountries)
	if len(countries) == 0 {
		return fmt.Errorf("no known country codes in %v", extractCountries)
	}
	log.Printf("Extracting %s for %d countries with %d workers", extractDataset, len(countries), extractWorkers)
	results, err := client.FetchAll(ctx, countries, extractWorkers)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(results))
	for cc := range results {
		codes = append(codes, cc)
	}
	sort.Strings(codes)

	collections := make(chan storage.KeyedCollection, len(codes))
	total, failed := 0, 0
	for _, cc := range codes {
		r := results[cc]
		if r.Err != nil {
			failed++
			continue
		}
		fc, summary, err := convert(cc, extractDataset, r.Elements, time.Now())
		if err != nil {
			log.Printf("Failed to convert %s: %v", cc, err)
			failed++
			continue
		}
		if err := writeOutputs(extractOutput, extractDataset, cc, fc, summary); err != nil {
			return err
		}
		total += summary.TotalPlaces
		logSummary(summary)
		collections <- storage.KeyedCollection{Key: keys.Dataset(extractDataset, cc), Collection: fc}
	}
	close(collections)

	if s3 != nil {
		stored := s3.StoreCollectionsFromChannel(ctx, bucket, collections)
		log.Printf("Published %d collections to bucket '%s'", stored, bucket)
	}

	log.Printf("Extracted %s places from %d countries (%d failed) in %s",
		humanize.Comma(int64(total)), len(codes)-failed, failed, time.Since(start).Round(time.Second))
	if failed == len(codes) && failed > 0 {
		return fmt.Errorf("every country failed")
	}
	return nil
}

// convert turns one country's elements into a collection and its summary.
func convert(cc, dataset string, elements []osm.Element, now time.Time) (*models.PlaceCollection, osm.Summary, error) {
	p := osm.Processor{CountryCode: cc, Dataset: dataset, Now: now, Classifier: classify.Default()}
	places, skipped := p.Places(elements)
	summary := osm.Summarise(cc, places, skipped, now)
	fc, err := models.NewPlaceCollection(models.CollectionMetadata{
		Title:          fmt.Sprintf("Places of Worship - %s", cc),
		Source:         "OpenStreetMap via Overpass API",
		License:        "ODbL",
		CountryCode:    cc,
		Dataset:        dataset,
		ExtractionDate: now.UTC().Format(time.RFC3339),
		TotalPlaces:    len(places),
	}, places)
	return fc, summary, err
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeOutputs stores <dataset>_<cc>.geojson and its _summary.json.
func writeOutputs(dir, dataset, cc string, fc *models.PlaceCollection, summary osm.Summary) error {
	base := filepath.Join(dir, fmt.Sprintf("%s_%s", dataset, strings.ToLower(cc)))
	if err := writeJSONFile(base+".geojson", fc); err != nil {
		return fmt.Errorf("write %s collection: %w", cc, err)
	}
	if err := writeJSONFile(base+"_summary.json", summary); err != nil {
		return fmt.Errorf("write %s summary: %w", cc, err)
	}
	return nil
}

func logSummary(s osm.Summary) {
	log.Printf("%s: %s places, %d skipped; confidence high/medium/low %d/%d/%d; address %s",
		s.Country, humanize.Comma(int64(s.TotalPlaces)), s.Skipped,
		s.ConfidenceDistribution.High, s.ConfidenceDistribution.Medium, s.ConfidenceDistribution.Low,
		s.DataCompleteness.HasAddress)
	for i, d := range s.Denominations {
		if i == 5 {
			break
		}
		log.Printf("  %-20s %s", d.Denomination, humanize.Comma(int64(d.Count)))
	}
}
