// Package cluster groups places into screen-space grid cells for a given
// slippy-map zoom level.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"worship/internal/models"
)

// ZoomLevel is a slippy-map zoom, 0 being the whole world on one tile.
type ZoomLevel int

const (
	MinZoom ZoomLevel = 0
	MaxZoom ZoomLevel = 20

	tileSize = 256
	// DefaultCellSize is the grid cell edge in screen pixels.
	DefaultCellSize = 60

	maxMercatorLat = 85.05112878
)

func (z ZoomLevel) Validate() error {
	if z < MinZoom || z > MaxZoom {
		return fmt.Errorf("zoom %d out of range [%d,%d]", z, MinZoom, MaxZoom)
	}
	return nil
}

// Pixel projects a coordinate to Web Mercator world pixels at zoom z.
func Pixel(lat, lng float64, z ZoomLevel) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	scale := tileSize * math.Exp2(float64(z))
	x = (lng + 180) / 360 * scale
	sin := math.Sin(lat * math.Pi / 180)
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * scale
	return x, y
}

// Cluster is one occupied grid cell. PlaceID is set only for single-member cells.
type Cluster struct {
	ID         string         `json:"id"`
	Lat        float64        `json:"lat"`
	Lng        float64        `json:"lng"`
	Count      int            `json:"count"`
	Categories map[string]int `json:"categories"`
	PlaceID    string         `json:"place_id,omitempty"`
}

type cellKey struct{ x, y int64 }

// Options tune the grid. CategoryOf labels a place for the per-category counts.
type Options struct {
	Zoom       ZoomLevel
	CellSize   int
	CategoryOf func(models.Place) string
}

// Build buckets places into cells and returns clusters sorted by descending
// count, then id.
func Build(places []models.Place, opts Options) ([]Cluster, error) {
	if err := opts.Zoom.Validate(); err != nil {
		return nil, err
	}
	size := opts.CellSize
	if size <= 0 {
		size = DefaultCellSize
	}
	categoryOf := opts.CategoryOf
	if categoryOf == nil {
		categoryOf = func(p models.Place) string { return p.Category }
	}

	type acc struct {
		sumLat, sumLng float64
		c              Cluster
	}
	cells := make(map[cellKey]*acc)
	for _, p := range places {
		x, y := Pixel(p.Lat, p.Lng, opts.Zoom)
		k := cellKey{int64(math.Floor(x / float64(size))), int64(math.Floor(y / float64(size)))}
		a, ok := cells[k]
		if !ok {
			a = &acc{c: Cluster{
				ID:         fmt.Sprintf("%d/%d/%d", opts.Zoom, k.x, k.y),
				Categories: make(map[string]int),
			}}
			cells[k] = a
		}
		a.sumLat += p.Lat
		a.sumLng += p.Lng
		a.c.Count++
		a.c.Categories[categoryOf(p)]++
		a.c.PlaceID = p.ID
	}

	out := make([]Cluster, 0, len(cells))
	for _, a := range cells {
		c := a.c
		c.Lat = a.sumLat / float64(c.Count)
		c.Lng = a.sumLng / float64(c.Count)
		if c.Count > 1 {
			c.PlaceID = ""
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
