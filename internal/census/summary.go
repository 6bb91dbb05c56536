package census

import (
	"strconv"

	"worship/internal/models"
)

// RegionSummary is the per-region detail view.
type RegionSummary struct {
	Code           string                   `json:"code"`
	Name           string                   `json:"name,omitempty"`
	Level          string                   `json:"level"`
	TemporalData   map[string]models.Counts `json:"temporal_data"`
	YearsAvailable []int                    `json:"years_available"`
	Shares         map[string]models.Counts `json:"shares"`
}

// Summarise returns the region's raw counts and percentage shares per year.
// The boolean is false when the code is not in the table.
func Summarise(table models.CensusTable, level, code string) (*RegionSummary, bool) {
	rc, ok := table[code]
	if !ok {
		return nil, false
	}
	s := &RegionSummary{
		Code:         code,
		Name:         rc.Name,
		Level:        level,
		TemporalData: rc.Years,
		Shares:       make(map[string]models.Counts, len(rc.Years)),
	}
	for _, y := range rc.YearList() {
		if n, err := strconv.Atoi(y); err == nil {
			s.YearsAvailable = append(s.YearsAvailable, n)
		}
		counts := rc.Years[y]
		shares := models.Counts{}
		for category := range counts {
			if category == models.TotalStatedKey {
				continue
			}
			if pct, ok := counts.Percent(category); ok {
				shares[category] = round1(pct)
			}
		}
		s.Shares[y] = shares
	}
	return s, true
}
