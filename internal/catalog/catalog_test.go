package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/classify"
	"worship/internal/models"
	"worship/internal/storage"
	"worship/pkg/geo"
)

const taBoundaries = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"TA2025_V1":"047","TA2025_NAME":"Wellington City"},
	 "geometry":{"type":"Polygon","coordinates":[[[174.6,-41.4],[174.9,-41.4],[174.9,-41.1],[174.6,-41.1],[174.6,-41.4]]]}}
]}`

const taCensus = `{"047":{"name":"Wellington City","2013":{"Christian":80,"No religion":100,"Total stated":200},
	"2018":{"Christian":70,"No religion":120,"Total stated":210}}}`

func writePlaces(t *testing.T, path string, places []models.Place) {
	t.Helper()
	fc, err := models.NewPlaceCollection(models.CollectionMetadata{Title: "test"}, places)
	require.NoError(t, err)
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func testDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePlaces(t, filepath.Join(dir, "churches.geojson"), []models.Place{
		{ID: "n1", OSMID: 1, OSMType: "node", Lat: -41.28, Lng: 174.77, Name: "St Paul's",
			Religion: "christian", Denomination: "anglican", Confidence: 0.6, CountryCode: "NZ"},
		{ID: "w2", OSMID: 2, OSMType: "way", Lat: -36.85, Lng: 174.76, Name: "Masjid",
			Religion: "muslim", Confidence: 0.9, CountryCode: "NZ", Category: "Islam"},
		{ID: "n3", OSMID: 3, OSMType: "node", Lat: -33.86, Lng: 151.2, Name: "Temple",
			Religion: "buddhist", Confidence: 0.6, CountryCode: "AU"},
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "census"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "boundaries"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "census", "ta.json"), []byte(taCensus), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boundaries", "ta.geojson"), []byte(taBoundaries), 0o644))
	return dir
}

func TestOpen(t *testing.T) {
	c, err := Open(testDir(t), WithClassifier(classify.Default()))
	require.NoError(t, err)
	ctx := context.Background()

	places, err := c.Places(ctx, storage.PlaceQuery{Dataset: models.DatasetChurches, Bounds: geo.World})
	require.NoError(t, err)
	require.Len(t, places, 3)
	assert.Equal(t, []string{"w2", "n1", "n3"}, []string{places[0].ID, places[1].ID, places[2].ID})
	assert.Equal(t, "Christian", places[1].Category, "classified on load")
	assert.Equal(t, "Islam", places[0].Category)
	assert.Equal(t, models.DatasetChurches, places[0].Dataset)

	nz, err := c.Places(ctx, storage.PlaceQuery{Dataset: models.DatasetChurches, Bounds: geo.World, Country: "nz"})
	require.NoError(t, err)
	assert.Len(t, nz, 2)

	schools, err := c.Places(ctx, storage.PlaceQuery{Dataset: models.DatasetSchools, Bounds: geo.World})
	require.NoError(t, err)
	assert.NotNil(t, schools)
	assert.Empty(t, schools)

	p, err := c.Place(ctx, "n3")
	require.NoError(t, err)
	assert.Equal(t, "Temple", p.Name)
	p, err = c.Place(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "w2", p.ID)
	_, err = c.Place(ctx, "n99")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats[models.DatasetChurches].Count)
	assert.Equal(t, 2, stats[models.DatasetChurches].Countries)
	assert.Equal(t, 0, stats[models.DatasetTownhalls].Count)

	table, ok := c.CensusTable(models.LevelTA)
	require.True(t, ok)
	assert.Equal(t, "Wellington City", table["047"].Name)
	_, ok = c.CensusTable(models.LevelSA2)
	assert.False(t, ok)

	raw, ok := c.BoundaryGeoJSON(models.LevelTA)
	require.True(t, ok)
	assert.JSONEq(t, taBoundaries, string(raw))

	regions, ok := c.Regions(models.LevelTA)
	require.True(t, ok)
	code, ok := regions.Locate(-41.28, 174.77)
	assert.True(t, ok)
	assert.Equal(t, "047", code)
}

func TestOpenEmptyDir(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Snapshot().Total())
	assert.Len(t, c.Snapshot().Places, len(models.Datasets))
}

func TestReloadKeepsSnapshotOnError(t *testing.T) {
	dir := testDir(t)
	c, err := Open(dir)
	require.NoError(t, err)
	before := c.Snapshot()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "churches.geojson"), []byte("{broken"), 0o644))
	assert.Error(t, c.Reload())
	assert.Same(t, before, c.Snapshot())
}

func TestWatchReloads(t *testing.T) {
	dir := testDir(t)
	c, err := Open(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, 20*time.Millisecond, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
	}()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	writePlaces(t, filepath.Join(dir, "townhalls.geojson"), []models.Place{
		{ID: "n10", OSMID: 10, OSMType: "node", Lat: -41, Lng: 174, Name: "Hall", Confidence: 0.5},
	})

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing a dataset")
	}
	assert.Len(t, c.Snapshot().Places[models.DatasetTownhalls], 1)

	cancel()
	assert.NoError(t, <-done)
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant("/data/churches.geojson"))
	assert.True(t, relevant("/data/census/ta.json"))
	assert.False(t, relevant("/data/.churches.geojson.swp"))
	assert.False(t, relevant("/data/notes.txt"))
}
