package models

import (
	"fmt"
	"strings"

	"worship/pkg/geo"
)

// Dataset names served by the API. Only churches is populated by the
// extractor today; the other two are kept so clients can request them.
const (
	DatasetChurches  = "churches"
	DatasetSchools   = "schools"
	DatasetTownhalls = "townhalls"
)

var Datasets = []string{DatasetChurches, DatasetSchools, DatasetTownhalls}

// Place is the flat record a map marker is rendered from.
type Place struct {
	ID           string            `json:"id"`
	OSMID        int64             `json:"osm_id"`
	OSMType      string            `json:"osm_type"`
	Lat          float64           `json:"lat"`
	Lng          float64           `json:"lng"`
	Name         string            `json:"name"`
	Religion     string            `json:"religion"`
	Denomination string            `json:"denomination"`
	Category     string            `json:"category,omitempty"`
	Confidence   float64           `json:"confidence"`
	CountryCode  string            `json:"country_code"`
	Dataset      string            `json:"type"`
	Website      string            `json:"website,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Address      string            `json:"address,omitempty"`
	StartDate    string            `json:"start_date,omitempty"`
	RegionCode   string            `json:"region_code,omitempty"`
	Description  string            `json:"description,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// PlaceID builds the stable identifier used across datasets, e.g. "n123".
func PlaceID(osmType string, osmID int64) string {
	prefix := "x"
	if osmType != "" {
		prefix = strings.ToLower(osmType[:1])
	}
	return fmt.Sprintf("%s%d", prefix, osmID)
}

// Validate enforces the only data invariant a place has: a coordinate on the globe.
func (p Place) Validate() error {
	if !geo.ValidCoordinate(p.Lat, p.Lng) {
		return fmt.Errorf("place %s: coordinates out of range (%f, %f)", p.ID, p.Lat, p.Lng)
	}
	return nil
}

// Detail is the single-place response shape, with [lng, lat] coordinates.
type Detail struct {
	PlaceID      string            `json:"place_id"`
	OSMID        int64             `json:"osm_id"`
	Name         string            `json:"name"`
	Religion     string            `json:"religion"`
	Denomination string            `json:"denomination"`
	Category     string            `json:"category"`
	Coordinates  [2]float64        `json:"coordinates"`
	CountryCode  string            `json:"country_code"`
	Confidence   float64           `json:"confidence"`
	Address      string            `json:"address"`
	Website      string            `json:"website"`
	Phone        string            `json:"phone"`
	RegionCode   string            `json:"region_code,omitempty"`
	Description  string            `json:"description,omitempty"`
	Tags         map[string]string `json:"tags"`
	DataSource   string            `json:"data_source"`
}

func (p Place) Detail() Detail {
	tags := p.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return Detail{
		PlaceID:      p.ID,
		OSMID:        p.OSMID,
		Name:         p.Name,
		Religion:     p.Religion,
		Denomination: p.Denomination,
		Category:     p.Category,
		Coordinates:  [2]float64{p.Lng, p.Lat},
		CountryCode:  p.CountryCode,
		Confidence:   p.Confidence,
		Address:      p.Address,
		Website:      p.Website,
		Phone:        p.Phone,
		RegionCode:   p.RegionCode,
		Description:  p.Description,
		Tags:         tags,
		DataSource:   p.Dataset,
	}
}
