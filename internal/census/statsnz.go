package census

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"worship/internal/models"
)

// Stats NZ CSV column headers.
const (
	colUnit     = "Unit"
	colArea     = "Territorial authority"
	colYear     = "Census Year"
	colReligion = "Religious affiliation"
	colValue    = "Value"
)

// ReligionNames maps Stats NZ affiliation labels to table categories.
// Labels not listed are skipped.
var ReligionNames = map[string]string{
	"Christianity":    "Christian",
	"No religion":     "No religion",
	"Buddhism":        "Buddhism",
	"Hinduism":        "Hinduism",
	"Islam":           "Islam",
	"Judaism":         "Judaism",
	"Māori religions": "Māori Christian",
	"Other Religions": "Other religion",
}

// DefaultYearSlots files 2023 counts under the "2006" key the map's timeline
// expects, alongside the real 2013 and 2018 columns.
var DefaultYearSlots = map[string]string{"2023": "2006", "2013": "2013", "2018": "2018"}

// ImportReport summarises a Stats NZ conversion.
type ImportReport struct {
	Rows      int      `json:"rows"`
	CountRows int      `json:"count_rows"`
	Skipped   int      `json:"skipped"`
	Years     []string `json:"years"`
	Regions   int      `json:"regions"`
}

// ParseStatsNZ converts the territorial authority religious affiliation CSV
// into a census table. Only "Count" rows are used. Regions get three-digit
// codes in alphabetical order of name. yearSlots maps source years to table
// keys; nil uses DefaultYearSlots and years without a slot are dropped.
func ParseStatsNZ(r io.Reader, yearSlots map[string]string) (models.CensusTable, ImportReport, error) {
	if yearSlots == nil {
		yearSlots = DefaultYearSlots
	}
	var report ImportReport

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, report, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, col := range []string{colUnit, colArea, colYear, colReligion, colValue} {
		if _, ok := idx[col]; !ok {
			return nil, report, fmt.Errorf("missing column %q", col)
		}
	}
	field := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	byName := make(map[string]map[string]models.Counts)
	years := make(map[string]struct{})
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("read row %d: %w", report.Rows+1, err)
		}
		report.Rows++
		if field(rec, colUnit) != "Count" {
			continue
		}
		report.CountRows++

		name := field(rec, colArea)
		year := field(rec, colYear)
		years[year] = struct{}{}
		category, ok := ReligionNames[field(rec, colReligion)]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(field(rec, colValue), 64)
		if err != nil {
			log.Printf("Could not parse count for %s %s %s: %q", name, year, category, field(rec, colValue))
			report.Skipped++
			continue
		}
		if byName[name] == nil {
			byName[name] = make(map[string]models.Counts)
		}
		if byName[name][year] == nil {
			byName[name][year] = models.Counts{}
		}
		byName[name][year][category] = float64(int64(value))
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	table := make(models.CensusTable, len(names))
	for i, name := range names {
		rc := &models.RegionCensus{Code: fmt.Sprintf("%03d", i+1), Name: name, Years: map[string]models.Counts{}}
		for year, counts := range byName[name] {
			slot, ok := yearSlots[year]
			if !ok {
				continue
			}
			var total float64
			for _, category := range ReligionNames {
				total += counts[category]
			}
			counts[models.TotalStatedKey] = total
			rc.Years[slot] = counts
		}
		table[rc.Code] = rc
	}

	for y := range years {
		report.Years = append(report.Years, y)
	}
	sort.Strings(report.Years)
	report.Regions = len(table)
	return table, report, nil
}
