package census

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worship/internal/models"
)

const statsNZCSV = "\ufeffTerritorial authority,Census Year,Religious affiliation,Unit,Value\n" +
	"Wellington City,2013,Christianity,Count,80000\n" +
	"Wellington City,2013,No religion,Count,90000\n" +
	"Wellington City,2013,No religion,Percent,45.0\n" +
	"Wellington City,2013,Jedi,Count,12\n" +
	"Wellington City,2018,Christianity,Count,70000\n" +
	"Wellington City,2018,No religion,Count,110000\n" +
	"Wellington City,2018,Māori religions,Count,1500.7\n" +
	"Wellington City,2023,Christianity,Count,60000\n" +
	"Wellington City,2023,Islam,Count,..C\n" +
	"Auckland,2018,Other Religions,Count,5000\n" +
	"Auckland,2001,Islam,Count,10\n"

func TestParseStatsNZ(t *testing.T) {
	table, report, err := ParseStatsNZ(strings.NewReader(statsNZCSV), nil)
	require.NoError(t, err)

	assert.Equal(t, 11, report.Rows)
	assert.Equal(t, 10, report.CountRows)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"2001", "2013", "2018", "2023"}, report.Years)
	assert.Equal(t, 2, report.Regions)

	auckland := table["001"]
	require.NotNil(t, auckland, "codes follow alphabetical order")
	assert.Equal(t, "Auckland", auckland.Name)
	assert.Equal(t, []string{"2018"}, auckland.YearList(), "years without a slot are dropped")

	wgtn := table["002"]
	require.NotNil(t, wgtn)
	assert.Equal(t, []string{"2006", "2013", "2018"}, wgtn.YearList())
	assert.Equal(t, models.Counts{"Christian": 80000, "No religion": 90000, models.TotalStatedKey: 170000}, wgtn.Years["2013"])
	assert.Equal(t, 1500.0, wgtn.Years["2018"]["Māori Christian"])
	assert.Equal(t, 181500.0, wgtn.Years["2018"][models.TotalStatedKey])
	assert.Equal(t, models.Counts{"Christian": 60000, models.TotalStatedKey: 60000}, wgtn.Years["2006"], "2023 lands in the 2006 slot")
}

func TestParseStatsNZMissingColumn(t *testing.T) {
	_, _, err := ParseStatsNZ(strings.NewReader("Territorial authority,Census Year,Unit,Value\n"), nil)
	assert.Error(t, err)
}

func TestTableRoundTrip(t *testing.T) {
	table, _, err := ParseStatsNZ(strings.NewReader(statsNZCSV), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ta.json")
	require.NoError(t, WriteFile(path, table))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, table))
	assert.Contains(t, buf.String(), "Māori Christian", "UTF-8 is written unescaped")
}

func TestDecodeEmpty(t *testing.T) {
	table, err := Decode(strings.NewReader("null"))
	require.NoError(t, err)
	assert.NotNil(t, table)
	assert.Empty(t, table)
}

func temporalTable() models.CensusTable {
	return models.CensusTable{
		"100": {Code: "100", Years: map[string]models.Counts{
			"2006": {"No religion": 30, models.TotalStatedKey: 100},
			"2013": {"No religion": 35, models.TotalStatedKey: 100},
			"2018": {"No religion": 45, models.TotalStatedKey: 100},
		}},
		"200": {Code: "200", Years: map[string]models.Counts{
			"2006": {"No religion": 50, models.TotalStatedKey: 100},
			"2018": {"No religion": 50.5, models.TotalStatedKey: 100},
		}},
		"300": {Code: "300", Years: map[string]models.Counts{
			"2006": {"No religion": 50, models.TotalStatedKey: 0},
			"2018": {"No religion": 20, models.TotalStatedKey: 100},
		}},
		"400": {Code: "400", Years: map[string]models.Counts{
			"2006": {"Christian": 60, models.TotalStatedKey: 200},
			"2018": {"Christian": 30, models.TotalStatedKey: 200},
		}},
	}
}

func TestTemporal(t *testing.T) {
	got, err := Temporal(temporalTable(), TemporalOptions{StartYear: 2006, EndYear: 2018})
	require.NoError(t, err)

	assert.Equal(t, "2006-2018", got.Summary.AnalysisPeriod)
	assert.Equal(t, DefaultTrendCategory, got.Summary.Category)
	assert.Equal(t, 4, got.Summary.TotalRegions)

	assert.Equal(t, []int{2006, 2013, 2018}, got.RegionalData["100"].Years)
	assert.Equal(t, []float64{30, 35, 45}, got.RegionalData["100"].Percentages)
	assert.Equal(t, Change{StartPercentage: 30, EndPercentage: 45, PercentagePointChange: 15, Trend: "increasing"}, got.Summary.RegionalChanges["100"])
	assert.Equal(t, "stable", got.Summary.RegionalChanges["200"].Trend)

	assert.Equal(t, []int{2018}, got.RegionalData["300"].Years, "zero total years are skipped")
	_, ok := got.Summary.RegionalChanges["300"]
	assert.False(t, ok, "one point has no change")

	assert.Equal(t, "stable", got.Summary.RegionalChanges["400"].Trend, "category absent means zero share")
}

func TestTemporalCategoryAndRange(t *testing.T) {
	got, err := Temporal(temporalTable(), TemporalOptions{StartYear: 2006, EndYear: 2018, Category: "Christian"})
	require.NoError(t, err)
	assert.Equal(t, "decreasing", got.Summary.RegionalChanges["400"].Trend)
	assert.Equal(t, -15.0, got.Summary.RegionalChanges["400"].PercentagePointChange)

	narrow, err := Temporal(temporalTable(), TemporalOptions{StartYear: 2013, EndYear: 2013})
	require.NoError(t, err)
	assert.Equal(t, 1, narrow.Summary.TotalRegions)
	assert.Empty(t, narrow.Summary.RegionalChanges)

	_, err = Temporal(temporalTable(), TemporalOptions{StartYear: 2018, EndYear: 2006})
	assert.Error(t, err)
}

func TestTrend(t *testing.T) {
	assert.Equal(t, "increasing", Trend(1.1))
	assert.Equal(t, "stable", Trend(1))
	assert.Equal(t, "stable", Trend(-1))
	assert.Equal(t, "decreasing", Trend(-1.1))
}

func TestSummarise(t *testing.T) {
	s, ok := Summarise(temporalTable(), models.LevelSA2, "100")
	require.True(t, ok)
	assert.Equal(t, []int{2006, 2013, 2018}, s.YearsAvailable)
	assert.Equal(t, 45.0, s.Shares["2018"]["No religion"])
	assert.Equal(t, models.LevelSA2, s.Level)

	s, ok = Summarise(temporalTable(), models.LevelSA2, "300")
	require.True(t, ok)
	assert.Empty(t, s.Shares["2006"], "no shares without a total")

	_, ok = Summarise(temporalTable(), models.LevelSA2, "missing")
	assert.False(t, ok)
}
