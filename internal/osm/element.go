// Package osm turns Overpass API elements into place records.
package osm

import (
	"fmt"
	"strings"
)

// LatLon is a coordinate as Overpass writes it.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is a node, way or relation from an Overpass JSON response.
type Element struct {
	Type      string            `json:"type"`
	ID        int64             `json:"id"`
	Lat       *float64          `json:"lat,omitempty"`
	Lon       *float64          `json:"lon,omitempty"`
	Center    *LatLon           `json:"center,omitempty"`
	Geometry  []LatLon          `json:"geometry,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Version   int               `json:"version,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Changeset int64             `json:"changeset,omitempty"`
	User      string            `json:"user,omitempty"`
}

// Response is the body of an Overpass [out:json] query.
type Response struct {
	Elements []Element `json:"elements"`
	Remark   string    `json:"remark,omitempty"`
}

func (e Element) tag(key string) string {
	return e.Tags[key]
}

func (e Element) has(key string) bool {
	_, ok := e.Tags[key]
	return ok
}

// religiousBuildings are building=* values that mark a place of worship.
var religiousBuildings = map[string]bool{
	"church":    true,
	"mosque":    true,
	"temple":    true,
	"synagogue": true,
	"chapel":    true,
	"cathedral": true,
	"monastery": true,
	"shrine":    true,
}

// Religions matched by the query's religion regex.
var queryReligions = []string{"christian", "muslim", "hindu", "buddhist", "jewish", "sikh", "taoist", "shinto", "bahai"}

// DefaultQueryTimeout is the server-side [timeout:] in seconds.
const DefaultQueryTimeout = 1800

// BuildQuery returns the Overpass QL selecting every place of worship
// inside the country's ISO 3166-1 area.
func BuildQuery(countryCode string, timeoutSeconds int) string {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultQueryTimeout
	}
	cc := strings.ToUpper(countryCode)
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", timeoutSeconds)
	fmt.Fprintf(&b, "area[\"ISO3166-1\"=\"%s\"]->.country;\n(\n", cc)
	b.WriteString("  nwr[\"amenity\"=\"place_of_worship\"](area.country);\n")
	for _, building := range []string{"church", "mosque", "temple", "synagogue", "chapel", "cathedral", "monastery", "shrine"} {
		fmt.Fprintf(&b, "  nwr[\"building\"=\"%s\"](area.country);\n", building)
	}
	b.WriteString("  nwr[\"landuse\"=\"religious\"](area.country);\n")
	fmt.Fprintf(&b, "  nwr[\"religion\"~\"%s\"](area.country);\n", strings.Join(queryReligions, "|"))
	b.WriteString(");\nout center meta;\n")
	return b.String()
}
