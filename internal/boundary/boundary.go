// Package boundary loads census region polygons and answers which region a
// coordinate falls in.
package boundary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"worship/internal/models"
)

// Level describes where a boundary file keeps its region code and name.
type Level struct {
	Name    string
	CodeKey string
	NameKey string
	// Raw shapefile exports truncate column names.
	CodeAliases []string
	NameAliases []string
}

var (
	SA2 = Level{Name: models.LevelSA2, CodeKey: "SA22018_V1_00", NameKey: "SA22018_V1_NAME"}
	TA  = Level{
		Name:        models.LevelTA,
		CodeKey:     "TA2025_V1",
		NameKey:     "TA2025_NAME",
		CodeAliases: []string{"TA2025_V1_"},
		NameAliases: []string{"TA2025_V_1"},
	}
)

// LevelByName returns the level for "sa2" or "ta".
func LevelByName(name string) (Level, bool) {
	switch strings.ToLower(name) {
	case models.LevelSA2:
		return SA2, true
	case models.LevelTA:
		return TA, true
	}
	return Level{}, false
}

func (l Level) code(props map[string]interface{}) string {
	return firstProp(props, append([]string{l.CodeKey}, l.CodeAliases...))
}

func (l Level) name(props map[string]interface{}) string {
	return firstProp(props, append([]string{l.NameKey}, l.NameAliases...))
}

func firstProp(props map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := propString(props[k]); s != "" {
			return s
		}
	}
	return ""
}

func propString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Region is one polygonal area of a boundary set.
type Region struct {
	Code     string
	Name     string
	Geometry geom.T
	bounds   *geom.Bounds
}

// Contains reports whether the point lies inside the region. Points inside
// a hole are outside.
func (r *Region) Contains(lat, lng float64) bool {
	p := geom.Coord{lng, lat}
	if !r.bounds.OverlapsPoint(geom.XY, p) {
		return false
	}
	switch g := r.Geometry.(type) {
	case *geom.Polygon:
		return polygonContains(g, p)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	layout := poly.Layout()
	if !xy.IsPointInRing(layout, p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(layout, p, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Set is a loaded boundary file indexed for point lookups.
type Set struct {
	Level   Level
	Regions []*Region
	// Skipped counts features without a code or a polygonal geometry.
	Skipped int
}

// Decode reads a GeoJSON FeatureCollection of Polygon/MultiPolygon regions.
func Decode(r io.Reader, level Level) (*Set, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode %s boundaries: %w", level.Name, err)
	}
	return FromCollection(&fc, level), nil
}

// FromCollection indexes an already decoded collection.
func FromCollection(fc *geojson.FeatureCollection, level Level) *Set {
	s := &Set{Level: level}
	for _, f := range fc.Features {
		code := level.code(f.Properties)
		if code == "" || f.Geometry == nil {
			s.Skipped++
			continue
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			s.Skipped++
			continue
		}
		s.Regions = append(s.Regions, &Region{
			Code:     code,
			Name:     level.name(f.Properties),
			Geometry: f.Geometry,
			bounds:   f.Geometry.Bounds(),
		})
	}
	return s
}

// LoadFile decodes a boundary file from disk.
func LoadFile(path string, level Level) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, level)
}

// Locate returns the code of the first region containing the point.
func (s *Set) Locate(lat, lng float64) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, r := range s.Regions {
		if r.Contains(lat, lng) {
			return r.Code, true
		}
	}
	return "", false
}

// Names maps region code to name.
func (s *Set) Names() map[string]string {
	out := make(map[string]string, len(s.Regions))
	for _, r := range s.Regions {
		out[r.Code] = r.Name
	}
	return out
}
