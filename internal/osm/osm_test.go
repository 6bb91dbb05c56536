package osm

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("nz", 0)
	assert.True(t, strings.HasPrefix(q, "[out:json][timeout:1800];"))
	assert.Contains(t, q, `area["ISO3166-1"="NZ"]->.country;`)
	assert.Contains(t, q, `nwr["amenity"="place_of_worship"](area.country);`)
	assert.Contains(t, q, `nwr["building"="monastery"](area.country);`)
	assert.Contains(t, q, `nwr["landuse"="religious"](area.country);`)
	assert.Contains(t, q, `nwr["religion"~"christian|muslim|hindu|buddhist|jewish|sikh|taoist|shinto|bahai"](area.country);`)
	assert.True(t, strings.HasSuffix(q, "out center meta;\n"))
	assert.Contains(t, BuildQuery("AU", 60), "[timeout:60]")
}

func TestIsPlaceOfWorship(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"amenity", map[string]string{"amenity": "place_of_worship"}, true},
		{"building", map[string]string{"building": "shrine"}, true},
		{"landuse", map[string]string{"landuse": "religious"}, true},
		{"religion only", map[string]string{"religion": "christian"}, true},
		{"religious school", map[string]string{"religion": "christian", "amenity": "school"}, false},
		{"religious hospital", map[string]string{"religion": "christian", "amenity": "hospital"}, false},
		{"plain building", map[string]string{"building": "house"}, false},
		{"no tags", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceOfWorship(tt.tags))
		})
	}
}

func TestCoordinates(t *testing.T) {
	lat, lng, ok := Coordinates(Element{Type: "node", Lat: ptr(-41.3), Lon: ptr(174.8)})
	require.True(t, ok)
	assert.Equal(t, -41.3, lat)
	assert.Equal(t, 174.8, lng)

	lat, lng, ok = Coordinates(Element{Type: "relation", Center: &LatLon{Lat: 1, Lon: 2}})
	require.True(t, ok)
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 2.0, lng)

	lat, lng, ok = Coordinates(Element{Type: "way", Geometry: []LatLon{{0, 0}, {2, 4}}})
	require.True(t, ok)
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 2.0, lng)

	_, _, ok = Coordinates(Element{Type: "relation"})
	assert.False(t, ok)
	_, _, ok = Coordinates(Element{Type: "node"})
	assert.False(t, ok)
}

func TestName(t *testing.T) {
	assert.Equal(t, "St Mary", Name(map[string]string{"name": "  ", "name:en": " St Mary "}, 1))
	assert.Equal(t, "Roman Catholic Place of Worship", Name(map[string]string{"denomination": "roman_catholic"}, 1))
	assert.Equal(t, "Buddhist Place of Worship", Name(map[string]string{"religion": "buddhist"}, 1))
	assert.Equal(t, "Place of Worship 42", Name(map[string]string{"religion": "unknown"}, 42))
}

func TestNormalizeReligion(t *testing.T) {
	tests := map[string]string{
		"":             "unknown",
		"Christianity": "christian",
		"catholic":     "christian",
		"Islam":        "muslim",
		"jew":          "jewish",
		"Baha'i":       "bahai",
		"dao":          "taoist",
		"jainism":      "jain",
		"Zoroastrian":  "zoroastrian",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeReligion(in), in)
	}
}

func TestDenomination(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"tag wins", map[string]string{"denomination": "roman_catholic", "religion": "christian"}, "roman_catholic"},
		{"from name", map[string]string{"religion": "christian", "name": "St Mary's Anglican Church"}, "Anglican"},
		{"from operator", map[string]string{"religion": "christian", "operator": "The Salvation Army"}, "Salvation Army"},
		{"christian fallback", map[string]string{"religion": "christian"}, ChristianOther},
		{"religion mapping", map[string]string{"religion": "muslim"}, "Islam"},
		{"bahai", map[string]string{"religion": "bahai"}, "Baháʼí Faith"},
		{"church building", map[string]string{"building": "chapel", "name": "Methodist Chapel"}, "Methodist"},
		{"synagogue building", map[string]string{"building": "synagogue"}, "Judaism"},
		{"temple is ambiguous", map[string]string{"building": "temple"}, UnknownDenomination},
		{"nothing", map[string]string{"amenity": "place_of_worship"}, UnknownDenomination},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Denomination(tt.tags))
		})
	}
	assert.Equal(t, "Catholic", ChristianDenomination(map[string]string{"denomination": "roman_catholic"}))
}

func TestAddressAndStartDate(t *testing.T) {
	tags := map[string]string{
		"addr:housenumber": "10",
		"addr:street":      "Hill Street",
		"addr:suburb":      "Thorndon",
		"addr:postcode":    "6011",
		"addr:country":     "NZ",
		"opening_date":     "1866",
	}
	assert.Equal(t, "10 Hill Street, Thorndon, 6011, NZ", Address(tags))
	tags["addr:city"] = "Wellington"
	assert.Equal(t, "10 Hill Street, Wellington, 6011, NZ", Address(tags))
	assert.Equal(t, "", Address(nil))

	assert.Equal(t, "1866", StartDate(tags))
	tags["start_date"] = "1865"
	assert.Equal(t, "1865", StartDate(tags))
}

func TestConfidence(t *testing.T) {
	recent := now.AddDate(0, 0, -100).Format(time.RFC3339)
	tests := []struct {
		name string
		e    Element
		want float64
	}{
		{
			name: "well tagged way",
			e: Element{Type: "way", Version: 5, Timestamp: recent, Tags: map[string]string{
				"name": "St Paul's", "amenity": "place_of_worship", "religion": "christian", "denomination": "anglican",
			}},
			want: 0.9,
		},
		{
			name: "bare first version node",
			e:    Element{Type: "node", Tags: map[string]string{"amenity": "place_of_worship"}},
			want: 0.486,
		},
		{
			name: "relation clamps to one",
			e: Element{Type: "relation", Version: 3, Tags: map[string]string{
				"name": "a", "amenity": "b", "denomination": "c", "religion": "d",
				"addr:street": "e", "addr:city": "f", "website": "g", "phone": "h",
			}},
			want: 1,
		},
		{
			name: "fixme",
			e:    Element{Type: "way", Version: 2, Tags: map[string]string{"name": "x", "amenity": "place_of_worship", "FIXME": "check"}},
			want: 0.51,
		},
		{
			name: "placeholder name",
			e:    Element{Type: "way", Version: 2, Tags: map[string]string{"name": "TBD", "amenity": "place_of_worship"}},
			want: 0.425,
		},
		{
			name: "two year old edit",
			e: Element{Type: "way", Version: 2, Timestamp: now.AddDate(-2, 0, 0).Format(time.RFC3339),
				Tags: map[string]string{"name": "x", "amenity": "place_of_worship", "website": "w"}},
			want: 0.831,
		},
		{
			name: "old edit",
			e: Element{Type: "way", Version: 2, Timestamp: now.AddDate(-5, 0, 0).Format(time.RFC3339),
				Tags: map[string]string{"name": "x", "amenity": "place_of_worship"}},
			want: 0.765,
		},
		{
			name: "invalid timestamp",
			e:    Element{Type: "way", Version: 2, Timestamp: "yesterday", Tags: map[string]string{"name": "x", "amenity": "place_of_worship"}},
			want: 0.765,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.e, now)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

const overpassJSON = `{
  "elements": [
    {"type": "node", "id": 101, "lat": -41.2799, "lon": 174.7806, "version": 4, "timestamp": "2025-01-10T00:00:00Z",
     "tags": {"amenity": "place_of_worship", "religion": "Christianity", "denomination": "anglican", "name": "Old St Paul's",
              "addr:street": "Mulgrave Street", "addr:city": "Wellington", "website": "https://example.org", "wheelchair": "yes", "source": "survey"}},
    {"type": "way", "id": 202, "center": {"lat": -36.85, "lon": 174.76}, "version": 2,
     "tags": {"building": "mosque"}},
    {"type": "relation", "id": 303, "tags": {"amenity": "place_of_worship"}},
    {"type": "node", "id": 404, "lat": -36.9, "lon": 174.7, "tags": {"amenity": "school", "religion": "christian"}},
    {"type": "node", "id": 101, "lat": -41.2799, "lon": 174.7806, "tags": {"amenity": "place_of_worship"}}
  ]
}`

func TestProcessorPlaces(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(overpassJSON), &resp))

	p := Processor{CountryCode: "nz", Now: now}
	places, skipped := p.Places(resp.Elements)
	assert.Equal(t, 2, skipped)
	require.Len(t, places, 2)

	church := places[0]
	assert.Equal(t, "n101", church.ID)
	assert.Equal(t, "christian", church.Religion)
	assert.Equal(t, "anglican", church.Denomination)
	assert.Equal(t, "Christian", church.Category)
	assert.Equal(t, "NZ", church.CountryCode)
	assert.Equal(t, models.DatasetChurches, church.Dataset)
	assert.Equal(t, "Mulgrave Street, Wellington", church.Address)
	assert.Equal(t, map[string]string{
		"amenity": "place_of_worship", "religion": "Christianity", "denomination": "anglican", "wheelchair": "yes",
	}, church.Tags)

	mosque := places[1]
	assert.Equal(t, "w202", mosque.ID)
	assert.Equal(t, "muslim", mosque.Religion, "religion inferred from the building")
	assert.Equal(t, "Islam", mosque.Denomination)
	assert.Equal(t, "Islam", mosque.Category)
	assert.Equal(t, "Place of Worship 202", mosque.Name)
	assert.Equal(t, -36.85, mosque.Lat)
}

func TestSummarise(t *testing.T) {
	places := []models.Place{
		{Denomination: "Anglican", Confidence: 0.9, Address: "a", Website: "w"},
		{Denomination: "Catholic", Confidence: 0.7},
		{Denomination: "Anglican", Confidence: 0.5, Phone: "p"},
		{Denomination: "Baptist", Confidence: 0.8},
	}
	s := Summarise("NZ", places, 3, now)
	assert.Equal(t, 4, s.TotalPlaces)
	assert.Equal(t, 3, s.Skipped)
	assert.Equal(t, []DenominationCount{{"Anglican", 2}, {"Baptist", 1}, {"Catholic", 1}}, s.Denominations)
	assert.Equal(t, ConfidenceDistribution{High: 2, Medium: 1, Low: 1}, s.ConfidenceDistribution)
	assert.Equal(t, "1/4 (25.0%)", s.DataCompleteness.HasAddress)
	assert.Equal(t, "2025-06-01T12:00:00Z", s.ExtractionDate)

	empty := Summarise("AU", nil, 0, now)
	assert.Equal(t, "0/0 (0.0%)", empty.DataCompleteness.HasPhone)
	assert.NotNil(t, empty.Denominations)
}

func TestOptimize(t *testing.T) {
	in := []models.Place{{
		ID: "n1", OSMID: 1, OSMType: "node", Lat: -41.123456789, Lng: 174.987654321,
		Denomination: "Anglican", Confidence: 0.876, Address: "dropped", Tags: map[string]string{"a": "b"},
		Website: "https://example.org",
	}}
	fc, err := Optimize(in, OptimizedMetadata)
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Metadata.TotalPlaces)
	assert.Equal(t, "ODbL", fc.Metadata.License)

	out, skipped := fc.Places()
	require.Zero(t, skipped)
	require.Len(t, out, 1)
	assert.Equal(t, -41.123457, out[0].Lat)
	assert.Equal(t, 174.987654, out[0].Lng)
	assert.Equal(t, 0.88, out[0].Confidence)
	assert.Equal(t, "Unknown", out[0].Name)
	assert.Empty(t, out[0].Address)
	assert.Nil(t, out[0].Tags)
	assert.Equal(t, "https://example.org", out[0].Website)

	before, err := EncodedSize(in)
	require.NoError(t, err)
	after, err := EncodedSize(fc)
	require.NoError(t, err)
	r := SizeReport{InputBytes: before, OutputBytes: after}
	assert.Contains(t, r.String(), "reduction")
	assert.Zero(t, SizeReport{}.Reduction())
}
