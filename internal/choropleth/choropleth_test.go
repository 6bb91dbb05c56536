package choropleth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/census"
	"worship/internal/models"
)

func TestClassifyChangeThresholds(t *testing.T) {
	cases := []struct {
		diff float64
		want Class
	}{
		{-5, ClassDecrease},
		{-1.0001, ClassDecrease},
		{-1, ClassStable},
		{0, ClassStable},
		{1, ClassStable},
		{1.0001, ClassIncrease},
		{12, ClassIncrease},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyChange(tc.diff), "diff %v", tc.diff)
	}
}

func TestChangeNoDataWhenTotalMissingOrZero(t *testing.T) {
	good := models.Counts{"No religion": 40, models.TotalStatedKey: 100}
	cases := map[string][2]models.Counts{
		"from missing":    {nil, good},
		"to missing":      {good, nil},
		"from zero total": {{"No religion": 3, models.TotalStatedKey: 0}, good},
		"to no total key": {good, {"No religion": 3}},
	}
	for name, pair := range cases {
		t.Run(name, func(t *testing.T) {
			r := DefaultPalette.Change(pair[0], pair[1], "No religion")
			assert.Equal(t, ClassNoData, r.Class)
			assert.Equal(t, DefaultPalette.Neutral, r.Color)
			assert.Nil(t, r.Value)
		})
	}
}

func TestChangeColours(t *testing.T) {
	from := models.Counts{"No religion": 30, models.TotalStatedKey: 100}
	cases := []struct {
		name  string
		to    float64
		class Class
		color string
	}{
		{"increase", 45, ClassIncrease, DefaultPalette.Increase},
		{"decrease", 20, ClassDecrease, DefaultPalette.Decrease},
		{"stable inside band", 30.5, ClassStable, DefaultPalette.Neutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			to := models.Counts{"No religion": tc.to, models.TotalStatedKey: 100}
			r := DefaultPalette.Change(from, to, "No religion")
			assert.Equal(t, tc.class, r.Class)
			assert.Equal(t, tc.color, r.Color)
			require.NotNil(t, r.Value)
			assert.InDelta(t, tc.to-30, *r.Value, 1e-9)
		})
	}
}

func TestEntropy(t *testing.T) {
	t.Run("single group is zero", func(t *testing.T) {
		v, ok := Entropy(models.Counts{"Christian": 10, models.TotalStatedKey: 10})
		require.True(t, ok)
		assert.InDelta(t, 0, v, 1e-12)
	})
	t.Run("even split over six groups is one", func(t *testing.T) {
		c := models.Counts{
			"Christian": 5, "Māori Christian": 5, "No religion": 10, "Buddhism": 10,
			"Hinduism": 10, "Islam": 10, "Judaism": 4, "Other religion": 6,
			models.TotalStatedKey: 60,
		}
		v, ok := Entropy(c)
		require.True(t, ok)
		assert.InDelta(t, 1, v, 1e-12)
	})
	t.Run("two even groups", func(t *testing.T) {
		v, ok := Entropy(models.Counts{"Christian": 50, "No religion": 50, models.TotalStatedKey: 100})
		require.True(t, ok)
		assert.InDelta(t, math.Log(2)/math.Log(6), v, 1e-12)
	})
	t.Run("zero total is no data", func(t *testing.T) {
		_, ok := Entropy(models.Counts{"Christian": 5, models.TotalStatedKey: 0})
		assert.False(t, ok)
		r := DefaultPalette.DiversityRegion(models.Counts{"Christian": 5})
		assert.Equal(t, ClassNoData, r.Class)
		assert.Equal(t, DefaultPalette.Neutral, r.Color)
	})
	t.Run("non-response keys are ignored", func(t *testing.T) {
		g := Grouped(models.Counts{"Object to answering": 99, "Jedi": 2, models.TotalStatedKey: 2})
		assert.Equal(t, []float64{0, 0, 0, 0, 0, 2}, g)
	})
}

func TestBin(t *testing.T) {
	assert.Equal(t, 0, Bin(0, 5))
	assert.Equal(t, 0, Bin(0.19, 5))
	assert.Equal(t, 1, Bin(0.2, 5))
	assert.Equal(t, 4, Bin(0.99, 5))
	assert.Equal(t, 4, Bin(1, 5))
	assert.Equal(t, 0, Bin(-0.1, 5))
}

func TestBuild(t *testing.T) {
	table := models.CensusTable{
		"b": {Code: "b", Name: "Bravo", Years: map[string]models.Counts{
			"2013": {"No religion": 10, models.TotalStatedKey: 100},
			"2018": {"No religion": 20, models.TotalStatedKey: 100},
		}},
		"a": {Code: "a", Name: "Alpha", Years: map[string]models.Counts{
			"2013": {"No religion": 10, models.TotalStatedKey: 0},
			"2018": {"No religion": 20, models.TotalStatedKey: 100},
		}},
	}

	layer, err := Build(table, Options{Mode: ModeChange, Category: "No religion", From: "2013", To: "2018"})
	require.NoError(t, err)
	require.Len(t, layer.Regions, 2)
	assert.Equal(t, "a", layer.Regions[0].Code)
	assert.Equal(t, ClassNoData, layer.Regions[0].Class)
	assert.Equal(t, ClassIncrease, layer.Regions[1].Class)
	assert.Equal(t, "Bravo", layer.Regions[1].Name)
	assert.Equal(t, 1, layer.NoData)

	div, err := Build(table, Options{Mode: ModeDiversity, Year: "2018"})
	require.NoError(t, err)
	assert.Len(t, div.Legend, 6)
	for _, r := range div.Regions {
		assert.Equal(t, ClassDiversity, r.Class)
	}

	_, err = Build(table, Options{Mode: ModeChange, From: "2013"})
	assert.Error(t, err)
	_, err = Build(table, Options{Mode: ModeDiversity})
	assert.Error(t, err)
	_, err = Build(table, Options{Mode: "heatmap"})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeChange, m)
	m, err = ParseMode("diversity")
	require.NoError(t, err)
	assert.Equal(t, ModeDiversity, m)
	_, err = ParseMode("x")
	assert.Error(t, err)
}

func TestChangeClassAgreesWithTemporalTrend(t *testing.T) {
	table := models.CensusTable{
		"100100": {Code: "100100", Years: map[string]models.Counts{
			"2006": {"No religion": 100, models.TotalStatedKey: 1000},
			"2018": {"No religion": 1104, models.TotalStatedKey: 10000},
		}},
		"100200": {Code: "100200", Years: map[string]models.Counts{
			"2006": {"No religion": 100, models.TotalStatedKey: 1000},
			"2018": {"No religion": 1096, models.TotalStatedKey: 10000},
		}},
		"100300": {Code: "100300", Years: map[string]models.Counts{
			"2006": {"No religion": 200, models.TotalStatedKey: 1000},
			"2018": {"No religion": 1896, models.TotalStatedKey: 10000},
		}},
	}
	layer, err := Build(table, Options{Mode: ModeChange, Category: "No religion", From: "2006", To: "2018"})
	require.NoError(t, err)
	analysis, err := census.Temporal(table, census.TemporalOptions{StartYear: 2006, EndYear: 2018, Category: "No religion"})
	require.NoError(t, err)

	trends := map[Class]string{ClassIncrease: "increasing", ClassDecrease: "decreasing", ClassStable: "stable"}
	require.Len(t, layer.Regions, 3)
	for _, r := range layer.Regions {
		change, ok := analysis.Summary.RegionalChanges[r.Code]
		require.True(t, ok, r.Code)
		assert.Equal(t, trends[r.Class], change.Trend, "region %s diff %v", r.Code, *r.Value)
	}
	assert.Equal(t, ClassIncrease, layer.Regions[0].Class)
	assert.Equal(t, 1.0, analysis.Summary.RegionalChanges["100100"].PercentagePointChange)
	assert.Equal(t, ClassStable, layer.Regions[1].Class)
	assert.Equal(t, ClassDecrease, layer.Regions[2].Class)
}
