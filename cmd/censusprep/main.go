// Command censusprep converts Stats NZ downloads into the census tables and
// boundary files the API serves.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"

	"worship/internal/boundary"
	"worship/internal/census"
	"worship/internal/env"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/storage"
)

var (
	taOutput       string
	simplifyOutput string
	publish        bool
	levelName      string
	tolerance      float64
)

var rootCmd = &cobra.Command{
	Use:   "censusprep",
	Short: "Prepare census tables and boundaries",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		env.LoadEnv()
	},
	SilenceUsage: true,
}

var taCmd = &cobra.Command{
	Use:   "ta <religious-affiliation.csv>",
	Short: "Convert the territorial authority religious affiliation CSV to a census table",
	Args:  cobra.ExactArgs(1),
	RunE:  runTA,
}

var simplifyCmd = &cobra.Command{
	Use:   "simplify <boundaries.geojson>",
	Short: "Simplify a boundary file for the web",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimplify,
}

var locateCmd = &cobra.Command{
	Use:   "locate <boundaries.geojson> <lat> <lng>",
	Short: "Print the region containing a coordinate",
	Args:  cobra.ExactArgs(3),
	RunE:  runLocate,
}

func init() {
	taCmd.Flags().StringVarP(&taOutput, "output", "o", filepath.Join("data", keys.Census(models.LevelTA)), "census table to write")
	taCmd.Flags().BoolVar(&publish, "publish", false, "also upload to PLACES_BUCKET_NAME")

	simplifyCmd.Flags().StringVarP(&simplifyOutput, "output", "o", "", "boundary file to write (default data/boundaries/<level>.geojson)")
	simplifyCmd.Flags().StringVar(&levelName, "level", models.LevelTA, "geography level: sa2 or ta")
	simplifyCmd.Flags().Float64Var(&tolerance, "tolerance", boundary.DefaultTolerance, "vertex spacing in degrees")
	simplifyCmd.Flags().BoolVar(&publish, "publish", false, "also upload to PLACES_BUCKET_NAME")

	locateCmd.Flags().StringVar(&levelName, "level", models.LevelTA, "geography level: sa2 or ta")

	rootCmd.AddCommand(taCmd, simplifyCmd, locateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTA(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	table, report, err := census.ParseStatsNZ(f, nil)
	if err != nil {
		return err
	}
	log.Printf("Read %d rows (%d counts, %d skipped): %d regions, years %v",
		report.Rows, report.CountRows, report.Skipped, report.Regions, report.Years)

	if err := os.MkdirAll(filepath.Dir(taOutput), 0o755); err != nil {
		return err
	}
	if err := census.WriteFile(taOutput, table); err != nil {
		return err
	}
	log.Printf("Wrote %s", taOutput)
	return upload(keys.Census(models.LevelTA), table)
}

func runSimplify(cmd *cobra.Command, args []string) error {
	level, ok := boundary.LevelByName(levelName)
	if !ok {
		return fmt.Errorf("unknown level %q", levelName)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	out, report := boundary.Simplify(&fc, level, tolerance)
	log.Printf("Kept %d of %d regions (%d skipped), vertices %d -> %d",
		report.Kept, report.Features, report.Skipped, report.VerticesBefore, report.VerticesAfter)

	path := simplifyOutput
	if path == "" {
		path = filepath.Join("data", keys.Boundaries(level.Name))
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return err
	}
	log.Printf("Wrote %s (%d bytes)", path, len(encoded))
	return upload(keys.Boundaries(level.Name), out)
}

func runLocate(cmd *cobra.Command, args []string) error {
	level, ok := boundary.LevelByName(levelName)
	if !ok {
		return fmt.Errorf("unknown level %q", levelName)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("lng: %w", err)
	}
	set, err := boundary.LoadFile(args[0], level)
	if err != nil {
		return err
	}
	code, ok := set.Locate(lat, lng)
	if !ok {
		return fmt.Errorf("no %s region contains %.5f,%.5f", level.Name, lat, lng)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, set.Names()[code])
	return nil
}

// upload stores v under key when --publish is set.
func upload(key string, v interface{}) error {
	if !publish {
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
	return s3.PutJSON(ctx, bucket, key, v)
}
