package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TotalStatedKey is the denominator every census percentage is computed against.
const TotalStatedKey = "Total stated"

// Census geography levels.
const (
	LevelSA2 = "sa2"
	LevelTA  = "ta"
)

// ChangeThreshold is the percentage-point band around zero that counts as
// stable, for both map colours and temporal trends.
const ChangeThreshold = 1.0

// Counts maps a census category ("Christian", "No religion", ...) to a head count.
type Counts map[string]float64

// Total returns the "Total stated" count and whether it is usable as a denominator.
func (c Counts) Total() (float64, bool) {
	t, ok := c[TotalStatedKey]
	return t, ok && t > 0
}

// Percent returns count(category)/Total stated*100, or false when there is no denominator.
func (c Counts) Percent(category string) (float64, bool) {
	total, ok := c.Total()
	if !ok {
		return 0, false
	}
	return c[category] / total * 100, true
}

// RegionCensus is one region's entry in a census table. On the wire the
// optional "name" sits next to the year keys.
type RegionCensus struct {
	Code  string
	Name  string
	Years map[string]Counts
}

// YearList returns the census years present, sorted.
func (r RegionCensus) YearList() []string {
	years := make([]string, 0, len(r.Years))
	for y := range r.Years {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

func (r RegionCensus) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Years)+1)
	if r.Name != "" {
		out["name"] = r.Name
	}
	for y, c := range r.Years {
		out[y] = c
	}
	return json.Marshal(out)
}

func (r *RegionCensus) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Years = make(map[string]Counts, len(raw))
	for k, v := range raw {
		if k == "name" {
			if err := json.Unmarshal(v, &r.Name); err != nil {
				return fmt.Errorf("name: %w", err)
			}
			continue
		}
		var c Counts
		if err := json.Unmarshal(v, &c); err != nil {
			return fmt.Errorf("year %s: %w", k, err)
		}
		r.Years[k] = c
	}
	return nil
}

// CensusTable is keyed by region code.
type CensusTable map[string]*RegionCensus

func (t *CensusTable) UnmarshalJSON(data []byte) error {
	var raw map[string]*RegionCensus
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	table := make(CensusTable, len(raw))
	for code, r := range raw {
		if r == nil {
			continue
		}
		r.Code = code
		table[code] = r
	}
	*t = table
	return nil
}

// Codes returns region codes in sorted order.
func (t CensusTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Years returns every census year found in any region, sorted.
func (t CensusTable) Years() []string {
	seen := make(map[string]bool)
	for _, r := range t {
		for y := range r.Years {
			seen[y] = true
		}
	}
	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}
