package models

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// CollectionMetadata is the non-standard "metadata" member written at the
// top of every place collection.
type CollectionMetadata struct {
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Source         string `json:"source,omitempty"`
	License        string `json:"license,omitempty"`
	CountryCode    string `json:"country_code,omitempty"`
	Dataset        string `json:"dataset,omitempty"`
	ExtractionDate string `json:"extraction_date,omitempty"`
	TotalPlaces    int    `json:"total_places"`
}

// PlaceCollection is a GeoJSON FeatureCollection of Point features.
type PlaceCollection struct {
	Type     string             `json:"type"`
	Metadata CollectionMetadata `json:"metadata"`
	Features []*geojson.Feature `json:"features"`
}

// NewPlaceCollection converts places into point features. Places with
// invalid coordinates are rejected rather than silently dropped.
func NewPlaceCollection(meta CollectionMetadata, places []Place) (*PlaceCollection, error) {
	fc := &PlaceCollection{Type: "FeatureCollection", Metadata: meta, Features: make([]*geojson.Feature, 0, len(places))}
	for _, p := range places {
		f, err := p.Feature()
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	fc.Metadata.TotalPlaces = len(fc.Features)
	return fc, nil
}

// Feature renders the place as a GeoJSON point; lat/lng move into the geometry.
func (p Place) Feature() (*geojson.Feature, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{p.Lng, p.Lat})
	if err != nil {
		return nil, fmt.Errorf("place %s: %w", p.ID, err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	props := make(map[string]interface{})
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	delete(props, "lat")
	delete(props, "lng")
	return &geojson.Feature{ID: p.ID, Geometry: pt, Properties: props}, nil
}

// PlaceFromFeature is the inverse of Place.Feature.
func PlaceFromFeature(f *geojson.Feature) (Place, error) {
	var p Place
	pt, ok := f.Geometry.(*geom.Point)
	if !ok || pt.Empty() {
		return p, fmt.Errorf("feature %s: expected a Point geometry", f.ID)
	}
	raw, err := json.Marshal(f.Properties)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("feature %s: %w", f.ID, err)
	}
	p.Lng, p.Lat = pt.X(), pt.Y()
	if p.ID == "" {
		p.ID = f.ID
	}
	if p.ID == "" && p.OSMID != 0 {
		p.ID = PlaceID(p.OSMType, p.OSMID)
	}
	return p, p.Validate()
}

// Places decodes every feature, skipping ones that fail and reporting how many were skipped.
func (fc *PlaceCollection) Places() ([]Place, int) {
	out := make([]Place, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		p, err := PlaceFromFeature(f)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, p)
	}
	return out, skipped
}

func DecodePlaceCollection(r io.Reader) (*PlaceCollection, error) {
	var fc PlaceCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode place collection: %w", err)
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode place collection: unexpected type %q", fc.Type)
	}
	return &fc, nil
}
