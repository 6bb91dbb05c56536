package filter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/models"
	"worship/pkg/geo"
)

func samplePlaces() []models.Place {
	return []models.Place{
		{ID: "n1", Lat: -36.8, Lng: 174.7, Religion: "christian", Denomination: "anglican", Confidence: 0.9, CountryCode: "NZ"},
		{ID: "n2", Lat: -41.2, Lng: 174.8, Religion: "christian", Denomination: "roman_catholic", Confidence: 0.7, CountryCode: "NZ"},
		{ID: "n3", Lat: -33.8, Lng: 151.2, Religion: "muslim", Denomination: "sunni", Confidence: 0.8, CountryCode: "AU"},
		{ID: "n4", Lat: -45.8, Lng: 170.5, Religion: "christian", Denomination: "", Confidence: 0.5, CountryCode: "NZ"},
		{ID: "n5", Lat: 51.5, Lng: -0.1, Religion: "jewish", Denomination: "orthodox", Confidence: 0.95, CountryCode: "GB"},
	}
}

func ids(places []models.Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.ID
	}
	return out
}

func TestApply(t *testing.T) {
	nz := geo.Bounds{MinLat: -48, MinLng: 165, MaxLat: -34, MaxLng: 179}
	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps everything", Filter{}, []string{"n1", "n2", "n3", "n4", "n5"}},
		{"category", Filter{Category: "Christian"}, []string{"n1", "n2", "n4"}},
		{"category is case insensitive", Filter{Category: "christian"}, []string{"n1", "n2", "n4"}},
		{"category and denomination", Filter{Category: "Christian", Denomination: "Catholic"}, []string{"n2"}},
		{"raw denomination", Filter{Denomination: "roman_catholic"}, []string{"n2"}},
		{"catch-all group", Filter{Category: "Christian", Denomination: "Christian (Other)"}, []string{"n4"}},
		{"religion picks group", Filter{Denomination: "Orthodox Judaism"}, []string{"n5"}},
		{"country", Filter{Country: "nz"}, []string{"n1", "n2", "n4"}},
		{"confidence", Filter{MinConfidence: 0.8}, []string{"n1", "n3", "n5"}},
		{"bounds", Filter{Bounds: &nz}, []string{"n1", "n2", "n4"}},
		{"combined", Filter{Category: "Christian", MinConfidence: 0.6, Bounds: &nz}, []string{"n1", "n2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Apply(tc.filter, samplePlaces())))
		})
	}
}

func TestDenominationFilterIsSubsetOfCategoryFilter(t *testing.T) {
	religions := []string{"christian", "muslim", "jewish", "buddhist", "", "unknown", "sikh"}
	denominations := []string{"anglican", "catholic", "orthodox", "sunni", "zen", "", "vineyard", "methodist"}
	r := rand.New(rand.NewSource(7))
	places := make([]models.Place, 300)
	for i := range places {
		places[i] = models.Place{
			ID:           fmt.Sprintf("n%d", i),
			Religion:     religions[r.Intn(len(religions))],
			Denomination: denominations[r.Intn(len(denominations))],
		}
	}

	for _, cat := range []string{"Christian", "Islam", "Judaism", "Unknown"} {
		byCategory := make(map[string]bool)
		for _, p := range Apply(Filter{Category: cat}, places) {
			byCategory[p.ID] = true
		}
		for _, d := range Denominations(places, "", nil) {
			narrowed := Apply(Filter{Category: cat, Denomination: d.Denomination}, places)
			for _, p := range narrowed {
				require.True(t, byCategory[p.ID], "%s/%s returned %s outside the category", cat, d.Denomination, p.ID)
			}
		}
	}
}

func TestDenominations(t *testing.T) {
	places := append(samplePlaces(), models.Place{ID: "n6", Religion: "christian", Denomination: "church_of_england"})
	got := Denominations(places, "Christian", nil)
	require.Len(t, got, 3)
	assert.Equal(t, DenominationCount{Denomination: "Anglican", Count: 2}, got[0])
	assert.ElementsMatch(t, []string{"Catholic", "Christian (Other)"}, []string{got[1].Denomination, got[2].Denomination})

	all := Denominations(places, "", nil)
	assert.Len(t, all, 5)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Filter{}.Empty())
	assert.False(t, Filter{Country: "NZ"}.Empty())
}
