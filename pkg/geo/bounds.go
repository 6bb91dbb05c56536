package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// Bounds is a latitude/longitude box in the order the map client sends it:
// minLat, minLng, maxLat, maxLng.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// World covers every valid coordinate.
var World = Bounds{MinLat: -90, MinLng: -180, MaxLat: 90, MaxLng: 180}

// ParseBounds parses "minLat,minLng,maxLat,maxLng" and validates ordering and ranges.
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bounds must have 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("bounds value %q: %w", p, err)
		}
		v[i] = f
	}
	b := Bounds{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
	return b, b.Validate()
}

func (b Bounds) Validate() error {
	if !(-90 <= b.MinLat && b.MinLat <= b.MaxLat && b.MaxLat <= 90) {
		return fmt.Errorf("invalid latitude bounds")
	}
	if !(-180 <= b.MinLng && b.MinLng <= b.MaxLng && b.MaxLng <= 180) {
		return fmt.Errorf("invalid longitude bounds")
	}
	return nil
}

// Contains is inclusive on every edge.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Slice returns the bounds in request order.
func (b Bounds) Slice() []float64 {
	return []float64{b.MinLat, b.MinLng, b.MaxLat, b.MaxLng}
}

func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Distance returns the great-circle distance in kilometres (haversine).
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
