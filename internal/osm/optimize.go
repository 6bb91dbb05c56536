package osm

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"

	"worship/internal/models"
)

// OptimizedMetadata is written on optimised web collections.
var OptimizedMetadata = models.CollectionMetadata{
	Title:   "Places of Worship - New Zealand",
	Source:  "OpenStreetMap",
	License: "ODbL",
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Slim keeps the fields a map marker needs, with coordinates rounded to six
// decimals and confidence to two.
func Slim(p models.Place) models.Place {
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	return models.Place{
		ID:           p.ID,
		OSMID:        p.OSMID,
		OSMType:      p.OSMType,
		Lat:          roundTo(p.Lat, 6),
		Lng:          roundTo(p.Lng, 6),
		Name:         name,
		Religion:     p.Religion,
		Denomination: p.Denomination,
		Category:     p.Category,
		Confidence:   roundTo(p.Confidence, 2),
		CountryCode:  p.CountryCode,
		Dataset:      p.Dataset,
		Website:      p.Website,
		Phone:        p.Phone,
	}
}

// Optimize builds the web collection for places.
func Optimize(places []models.Place, meta models.CollectionMetadata) (*models.PlaceCollection, error) {
	slim := make([]models.Place, len(places))
	for i, p := range places {
		slim[i] = Slim(p)
	}
	return models.NewPlaceCollection(meta, slim)
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// EncodedSize is the compact JSON size of v in bytes.
func EncodedSize(v interface{}) (int64, error) {
	var w countingWriter
	if err := json.NewEncoder(io.Writer(&w)).Encode(v); err != nil {
		return 0, err
	}
	return w.n, nil
}

// SizeReport compares an input and output encoding.
type SizeReport struct {
	InputBytes  int64 `json:"input_bytes"`
	OutputBytes int64 `json:"output_bytes"`
}

// Reduction is the percentage saved.
func (r SizeReport) Reduction() float64 {
	if r.InputBytes == 0 {
		return 0
	}
	return (1 - float64(r.OutputBytes)/float64(r.InputBytes)) * 100
}

func (r SizeReport) String() string {
	return fmt.Sprintf("%s -> %s (%.1f%% reduction)",
		humanize.Bytes(uint64(r.InputBytes)), humanize.Bytes(uint64(r.OutputBytes)), r.Reduction())
}
