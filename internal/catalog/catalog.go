// Package catalog serves place datasets, census tables and boundaries from
// files in a data directory.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"worship/internal/boundary"
	"worship/internal/census"
	"worship/internal/classify"
	"worship/internal/keys"
	"worship/internal/models"
	"worship/internal/storage"
)

// Classifier fills in the broad category of places that lack one.
type Classifier interface {
	Classify(religion, denomination string) classify.Classification
}

// Levels are the census geographies looked for on disk.
var Levels = []boundary.Level{boundary.SA2, boundary.TA}

// Snapshot is one immutable load of the data directory.
type Snapshot struct {
	Places     map[string][]models.Place
	Census     map[string]models.CensusTable
	Regions    map[string]*boundary.Set
	Boundaries map[string][]byte
	LoadedAt   time.Time

	byID  map[string]models.Place
	byOSM map[int64]models.Place
}

// Total counts places across datasets.
func (s *Snapshot) Total() int {
	n := 0
	for _, places := range s.Places {
		n += len(places)
	}
	return n
}

// Catalog holds the current snapshot and swaps it atomically on reload.
type Catalog struct {
	dir        string
	datasets   []string
	classifier Classifier
	snap       atomic.Pointer[Snapshot]
}

type Option func(*Catalog)

// WithDatasets overrides the dataset names loaded from <dir>/<name>.geojson.
func WithDatasets(names ...string) Option { return func(c *Catalog) { c.datasets = names } }

func WithClassifier(cl Classifier) Option { return func(c *Catalog) { c.classifier = cl } }

// Open loads dir. Missing files leave their dataset empty; a file that
// exists but cannot be decoded is an error.
func Open(dir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{dir: dir, datasets: models.Datasets}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir is the data directory being served.
func (c *Catalog) Dir() string { return c.dir }

// Snapshot returns the current data. Callers must not modify it.
func (c *Catalog) Snapshot() *Snapshot { return c.snap.Load() }

// Reload reads the directory again and replaces the snapshot only if every
// present file decodes.
func (c *Catalog) Reload() error {
	s, err := c.load()
	if err != nil {
		return err
	}
	c.snap.Store(s)
	log.Printf("Catalog loaded from '%s': %d places in %d datasets", c.dir, s.Total(), len(s.Places))
	return nil
}

func (c *Catalog) path(rel string) string {
	return filepath.Join(c.dir, filepath.FromSlash(rel))
}

func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c *Catalog) load() (*Snapshot, error) {
	s := &Snapshot{
		Places:     make(map[string][]models.Place, len(c.datasets)),
		Census:     make(map[string]models.CensusTable),
		Regions:    make(map[string]*boundary.Set),
		Boundaries: make(map[string][]byte),
		LoadedAt:   time.Now().UTC(),
		byID:       make(map[string]models.Place),
		byOSM:      make(map[int64]models.Place),
	}

	for _, name := range c.datasets {
		places, err := c.loadDataset(name)
		if err != nil {
			return nil, err
		}
		s.Places[name] = places
		for _, p := range places {
			if _, dup := s.byID[p.ID]; !dup {
				s.byID[p.ID] = p
			}
			if _, dup := s.byOSM[p.OSMID]; !dup && p.OSMID != 0 {
				s.byOSM[p.OSMID] = p
			}
		}
	}

	for _, level := range Levels {
		table, err := census.LoadFile(c.path(keys.Census(level.Name)))
		switch {
		case missing(err):
			log.Printf("Warning: no %s census table in '%s'", level.Name, c.dir)
		case err != nil:
			return nil, err
		default:
			s.Census[level.Name] = table
		}

		raw, err := os.ReadFile(c.path(keys.Boundaries(level.Name)))
		switch {
		case missing(err):
			log.Printf("Warning: no %s boundaries in '%s'", level.Name, c.dir)
			continue
		case err != nil:
			return nil, err
		}
		set, err := boundary.Decode(bytes.NewReader(raw), level)
		if err != nil {
			return nil, fmt.Errorf("%s boundaries: %w", level.Name, err)
		}
		s.Boundaries[level.Name] = raw
		s.Regions[level.Name] = set
	}
	return s, nil
}

func (c *Catalog) loadDataset(name string) ([]models.Place, error) {
	path := filepath.Join(c.dir, name+".geojson")
	f, err := os.Open(path)
	if missing(err) {
		log.Printf("Warning: dataset '%s' not found at '%s', serving it empty", name, path)
		return []models.Place{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fc, err := models.DecodePlaceCollection(f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	places, skipped := fc.Places()
	if skipped > 0 {
		log.Printf("Dataset '%s': skipped %d invalid features", name, skipped)
	}
	for i := range places {
		p := &places[i]
		if p.Dataset == "" {
			p.Dataset = name
		}
		if p.Category == "" && c.classifier != nil {
			p.Category = c.classifier.Classify(p.Religion, p.Denomination).Category
		}
	}
	sortPlaces(places)
	return places, nil
}

// sortPlaces orders by confidence, highest first, then id.
func sortPlaces(places []models.Place) {
	sort.SliceStable(places, func(i, j int) bool {
		if places[i].Confidence != places[j].Confidence {
			return places[i].Confidence > places[j].Confidence
		}
		return places[i].ID < places[j].ID
	})
}

// Places implements storage.PlaceStore.
func (c *Catalog) Places(_ context.Context, q storage.PlaceQuery) ([]models.Place, error) {
	all := c.Snapshot().Places[q.Dataset]
	out := make([]models.Place, 0)
	for _, p := range all {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Place implements storage.PlaceStore.
func (c *Catalog) Place(_ context.Context, id string) (models.Place, error) {
	s := c.Snapshot()
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	if osmID, err := strconv.ParseInt(id, 10, 64); err == nil {
		if p, ok := s.byOSM[osmID]; ok {
			return p, nil
		}
	}
	return models.Place{}, storage.ErrNotFound
}

// Stats implements storage.PlaceStore.
func (c *Catalog) Stats(_ context.Context) (map[string]storage.DatasetStats, error) {
	s := c.Snapshot()
	out := make(map[string]storage.DatasetStats, len(s.Places))
	for name, places := range s.Places {
		out[name] = storage.ComputeStats(places)
	}
	return out, nil
}

// CensusTable returns the table for a level.
func (c *Catalog) CensusTable(level string) (models.CensusTable, bool) {
	t, ok := c.Snapshot().Census[level]
	return t, ok
}

// BoundaryGeoJSON returns the raw boundary file for a level.
func (c *Catalog) BoundaryGeoJSON(level string) ([]byte, bool) {
	b, ok := c.Snapshot().Boundaries[level]
	return b, ok
}

// LoadedAt is when the current snapshot was read.
func (c *Catalog) LoadedAt() time.Time { return c.Snapshot().LoadedAt }

// Regions returns the region index for a level.
func (c *Catalog) Regions(level string) (*boundary.Set, bool) {
	r, ok := c.Snapshot().Regions[level]
	return r, ok
}

var _ storage.PlaceStore = (*Catalog)(nil)
