package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/models"
	"worship/internal/osm"
)

func ptr(f float64) *float64 { return &f }

var testElements = []osm.Element{
	{Type: "node", ID: 1, Lat: ptr(-41.2795), Lon: ptr(174.7805), Version: 4,
		Tags: map[string]string{"amenity": "place_of_worship", "religion": "christian", "denomination": "anglican", "name": "Old St Paul's"}},
	{Type: "way", ID: 2, Center: &osm.LatLon{Lat: -36.8485, Lon: 174.7633},
		Tags: map[string]string{"amenity": "place_of_worship", "religion": "muslim"}},
	{Type: "node", ID: 3, Lat: ptr(-41.3), Lon: ptr(174.8), Tags: map[string]string{"amenity": "cafe"}},
	{Type: "node", ID: 1, Lat: ptr(-41.2795), Lon: ptr(174.7805),
		Tags: map[string]string{"amenity": "place_of_worship", "religion": "christian"}},
}

func TestConvertAndWrite(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fc, summary, err := convert("NZ", models.DatasetChurches, testElements, now)
	require.NoError(t, err)
	assert.Equal(t, 2, fc.Metadata.TotalPlaces)
	assert.Equal(t, "NZ", fc.Metadata.CountryCode)
	assert.Equal(t, 2, summary.TotalPlaces)
	assert.Equal(t, 1, summary.Skipped)

	dir := t.TempDir()
	require.NoError(t, writeOutputs(dir, models.DatasetChurches, "NZ", fc, summary))
	assert.FileExists(t, filepath.Join(dir, "churches_nz.geojson"))
	assert.FileExists(t, filepath.Join(dir, "churches_nz_summary.json"))
}

func TestOptimizeFiles(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	nz, nzSummary, err := convert("NZ", models.DatasetChurches, testElements, now)
	require.NoError(t, err)
	require.NoError(t, writeOutputs(dir, models.DatasetChurches, "NZ", nz, nzSummary))
	// A second file repeating the same places is merged away.
	dup := filepath.Join(dir, "copy.geojson")
	data, err := os.ReadFile(filepath.Join(dir, "churches_nz.geojson"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dup, data, 0o644))

	out, report, err := optimizeFiles([]string{filepath.Join(dir, "churches_nz.geojson"), dup}, models.DatasetChurches, now)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Metadata.TotalPlaces)
	assert.Equal(t, models.DatasetChurches, out.Metadata.Dataset)
	assert.Greater(t, report.InputBytes, report.OutputBytes)

	places, skipped := out.Places()
	require.Zero(t, skipped)
	for _, p := range places {
		assert.Nil(t, p.Tags, "web collection drops raw tags")
	}

	_, _, err = optimizeFiles([]string{filepath.Join(dir, "missing.geojson")}, models.DatasetChurches, now)
	assert.Error(t, err)
}
