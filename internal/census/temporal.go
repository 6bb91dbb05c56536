package census

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"worship/internal/models"
)

// DefaultTrendCategory is the category tracked when none is requested.
const DefaultTrendCategory = "No religion"

type TemporalOptions struct {
	StartYear int
	EndYear   int
	Category  string
}

// Series is one region's category share across the years analysed.
type Series struct {
	Years           []int     `json:"years"`
	Percentages     []float64 `json:"percentages"`
	TotalPopulation []float64 `json:"total_population"`
}

// Change is the first-to-last difference of a series.
type Change struct {
	StartPercentage       float64 `json:"start_percentage"`
	EndPercentage         float64 `json:"end_percentage"`
	PercentagePointChange float64 `json:"percentage_point_change"`
	Trend                 string  `json:"trend"`
}

type TemporalSummary struct {
	TotalRegions    int               `json:"total_regions"`
	AnalysisPeriod  string            `json:"analysis_period"`
	Category        string            `json:"category"`
	RegionalChanges map[string]Change `json:"regional_changes"`
}

type TemporalAnalysis struct {
	Summary      TemporalSummary   `json:"temporal_analysis"`
	RegionalData map[string]Series `json:"regional_data"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Trend names the direction of a percentage point change. It takes the
// unrounded change so it agrees with the choropleth classes.
func Trend(change float64) string {
	switch {
	case change > models.ChangeThreshold:
		return "increasing"
	case change < -models.ChangeThreshold:
		return "decreasing"
	default:
		return "stable"
	}
}

// Temporal computes each region's category share for census years within
// [StartYear, EndYear] that have a positive "Total stated". Regions with at
// least two such years also get a change entry.
func Temporal(table models.CensusTable, opts TemporalOptions) (*TemporalAnalysis, error) {
	if opts.EndYear < opts.StartYear {
		return nil, fmt.Errorf("end year %d before start year %d", opts.EndYear, opts.StartYear)
	}
	category := opts.Category
	if category == "" {
		category = DefaultTrendCategory
	}

	out := &TemporalAnalysis{
		Summary: TemporalSummary{
			AnalysisPeriod:  fmt.Sprintf("%d-%d", opts.StartYear, opts.EndYear),
			Category:        category,
			RegionalChanges: make(map[string]Change),
		},
		RegionalData: make(map[string]Series),
	}

	for _, code := range table.Codes() {
		rc := table[code]
		type point struct {
			year  int
			pct   float64
			total float64
		}
		var points []point
		for key, counts := range rc.Years {
			year, err := strconv.Atoi(key)
			if err != nil || year < opts.StartYear || year > opts.EndYear {
				continue
			}
			pct, ok := counts.Percent(category)
			if !ok {
				continue
			}
			total, _ := counts.Total()
			points = append(points, point{year: year, pct: pct, total: total})
		}
		if len(points) == 0 {
			continue
		}
		sort.Slice(points, func(i, j int) bool { return points[i].year < points[j].year })

		var s Series
		for _, p := range points {
			s.Years = append(s.Years, p.year)
			s.Percentages = append(s.Percentages, round1(p.pct))
			s.TotalPopulation = append(s.TotalPopulation, p.total)
		}
		out.RegionalData[code] = s

		if len(points) >= 2 {
			first, last := points[0].pct, points[len(points)-1].pct
			change := last - first
			out.Summary.RegionalChanges[code] = Change{
				StartPercentage:       round1(first),
				EndPercentage:         round1(last),
				PercentagePointChange: round1(change),
				Trend:                 Trend(change),
			}
		}
	}
	out.Summary.TotalRegions = len(out.RegionalData)
	return out, nil
}
