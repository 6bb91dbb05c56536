package boundary

import (
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DefaultTolerance is the vertex spacing, in degrees, used for web output.
const DefaultTolerance = 0.02

// outsideCode marks the "Area Outside Territorial Authority" pseudo-region.
const outsideCode = "999"

// SimplifyReport summarises a Simplify run.
type SimplifyReport struct {
	Features       int `json:"features"`
	Kept           int `json:"kept"`
	Skipped        int `json:"skipped"`
	VerticesBefore int `json:"vertices_before"`
	VerticesAfter  int `json:"vertices_after"`
}

// SimplifyRing drops every interior vertex within tol of the last kept vertex.
// The first and last vertices are always kept, so closed rings stay closed.
func SimplifyRing(coords []geom.Coord, tol float64) []geom.Coord {
	if len(coords) < 3 {
		return coords
	}
	out := []geom.Coord{coords[0]}
	for _, c := range coords[1 : len(coords)-1] {
		prev := out[len(out)-1]
		if math.Hypot(c[0]-prev[0], c[1]-prev[1]) > tol {
			out = append(out, c)
		}
	}
	return append(out, coords[len(coords)-1])
}

// simplifyRings returns nil when the outer ring collapses; holes that
// collapse are dropped on their own.
func simplifyRings(rings [][]geom.Coord, tol float64) [][]geom.Coord {
	var out [][]geom.Coord
	for i, ring := range rings {
		s := SimplifyRing(ring, tol)
		if len(s) >= 4 {
			out = append(out, s)
		} else if i == 0 {
			return nil
		}
	}
	return out
}

// SimplifyGeometry simplifies every ring of a Polygon or MultiPolygon,
// removing rings left with fewer than four vertices. A polygon whose outer
// ring collapses is removed with its holes. Other geometries, and geometries
// that would lose every polygon, are returned unchanged.
func SimplifyGeometry(g geom.T, tol float64) geom.T {
	switch t := g.(type) {
	case *geom.Polygon:
		rings := simplifyRings(t.Coords(), tol)
		if len(rings) == 0 {
			return g
		}
		p, err := geom.NewPolygon(t.Layout()).SetCoords(rings)
		if err != nil {
			return g
		}
		return p
	case *geom.MultiPolygon:
		var polys [][][]geom.Coord
		for _, poly := range t.Coords() {
			if rings := simplifyRings(poly, tol); len(rings) > 0 {
				polys = append(polys, rings)
			}
		}
		if len(polys) == 0 {
			return g
		}
		mp, err := geom.NewMultiPolygon(t.Layout()).SetCoords(polys)
		if err != nil {
			return g
		}
		return mp
	}
	return g
}

func vertexCount(g geom.T) int {
	if g == nil {
		return 0
	}
	return len(g.FlatCoords()) / g.Stride()
}

// Simplify returns a web-sized copy of fc. Regions without a code, with the
// 999 code or named "...outside..." are dropped and properties are reduced
// to the level's code and name keys plus LAND_AREA.
func Simplify(fc *geojson.FeatureCollection, level Level, tol float64) (*geojson.FeatureCollection, SimplifyReport) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	report := SimplifyReport{Features: len(fc.Features)}
	out := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, f := range fc.Features {
		code := level.code(f.Properties)
		name := level.name(f.Properties)
		if code == "" || code == outsideCode || strings.Contains(strings.ToLower(name), "outside") || f.Geometry == nil {
			report.Skipped++
			continue
		}
		area, ok := f.Properties["LAND_AREA_"]
		if !ok {
			area, ok = f.Properties["LAND_AREA"]
		}
		if !ok {
			area = 0
		}
		g := SimplifyGeometry(f.Geometry, tol)
		report.VerticesBefore += vertexCount(f.Geometry)
		report.VerticesAfter += vertexCount(g)
		out.Features = append(out.Features, &geojson.Feature{
			Geometry: g,
			Properties: map[string]interface{}{
				level.CodeKey: code,
				level.NameKey: name,
				"LAND_AREA":   area,
			},
		})
	}
	report.Kept = len(out.Features)
	return out, report
}
