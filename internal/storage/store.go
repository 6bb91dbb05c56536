package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"worship/internal/models"
	"worship/pkg/geo"
)

// ErrNotFound is returned when a place or object does not exist.
var ErrNotFound = errors.New("not found")

// PlaceQuery selects one dataset's places inside a bounding box.
type PlaceQuery struct {
	Dataset       string
	Bounds        geo.Bounds
	MinConfidence float64
	Country       string
}

// Match applies the query's conditions to one place.
func (q PlaceQuery) Match(p models.Place) bool {
	if !q.Bounds.Contains(p.Lat, p.Lng) {
		return false
	}
	if p.Confidence < q.MinConfidence {
		return false
	}
	if q.Country != "" && !strings.EqualFold(q.Country, p.CountryCode) {
		return false
	}
	return true
}

// ValueCount is one row of a top-N breakdown.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DatasetStats summarises one dataset.
type DatasetStats struct {
	Count         int          `json:"count"`
	Countries     int          `json:"countries"`
	Religions     int          `json:"religions"`
	AvgConfidence float64      `json:"avg_confidence"`
	TopCountries  []ValueCount `json:"top_countries"`
	TopReligions  []ValueCount `json:"top_religions"`
}

// TopN is the length of the stats breakdowns.
const TopN = 10

// PlaceStore is the read side the API serves places from.
type PlaceStore interface {
	// Places returns matching places in stable order.
	Places(ctx context.Context, q PlaceQuery) ([]models.Place, error)
	// Place looks a place up by id, then by OSM id; ErrNotFound otherwise.
	Place(ctx context.Context, id string) (models.Place, error)
	// Stats summarises each dataset by name.
	Stats(ctx context.Context) (map[string]DatasetStats, error)
}

func topCounts(counts map[string]int, n int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ComputeStats summarises an in-memory dataset.
func ComputeStats(places []models.Place) DatasetStats {
	countries := make(map[string]int)
	religions := make(map[string]int)
	var sum float64
	for _, p := range places {
		if p.CountryCode != "" {
			countries[p.CountryCode]++
		}
		if p.Religion != "" {
			religions[p.Religion]++
		}
		sum += p.Confidence
	}
	s := DatasetStats{
		Count:        len(places),
		Countries:    len(countries),
		Religions:    len(religions),
		TopCountries: topCounts(countries, TopN),
		TopReligions: topCounts(religions, TopN),
	}
	if len(places) > 0 {
		s.AvgConfidence = sum / float64(len(places))
	}
	return s
}
