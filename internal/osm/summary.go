package osm

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"worship/internal/models"
)

// Confidence bands used in extraction summaries.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.6
)

type DenominationCount struct {
	Denomination string `json:"denomination"`
	Count        int    `json:"count"`
}

type ConfidenceDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Completeness holds "n/N (x%)" strings for optional fields.
type Completeness struct {
	HasAddress string `json:"has_address"`
	HasPhone   string `json:"has_phone"`
	HasWebsite string `json:"has_website"`
}

// Summary describes one country's extraction.
type Summary struct {
	Country                string                 `json:"country"`
	TotalPlaces            int                    `json:"total_places"`
	Skipped                int                    `json:"skipped"`
	Denominations          []DenominationCount    `json:"denominations"`
	ConfidenceDistribution ConfidenceDistribution `json:"confidence_distribution"`
	DataCompleteness       Completeness           `json:"data_completeness"`
	ExtractionDate         string                 `json:"extraction_date"`
}

func ratio(n, total int) string {
	pct := 0.0
	if total > 0 {
		pct = float64(n) / float64(total) * 100
	}
	return fmt.Sprintf("%s/%s (%.1f%%)", humanize.Comma(int64(n)), humanize.Comma(int64(total)), pct)
}

// Summarise counts denominations (most common first), confidence bands and
// optional field coverage.
func Summarise(country string, places []models.Place, skipped int, now time.Time) Summary {
	s := Summary{
		Country:        country,
		TotalPlaces:    len(places),
		Skipped:        skipped,
		Denominations:  []DenominationCount{},
		ExtractionDate: now.UTC().Format(time.RFC3339),
	}
	counts := make(map[string]int)
	var address, phone, website int
	for _, p := range places {
		counts[p.Denomination]++
		switch {
		case p.Confidence >= HighConfidence:
			s.ConfidenceDistribution.High++
		case p.Confidence >= MediumConfidence:
			s.ConfidenceDistribution.Medium++
		default:
			s.ConfidenceDistribution.Low++
		}
		if p.Address != "" {
			address++
		}
		if p.Phone != "" {
			phone++
		}
		if p.Website != "" {
			website++
		}
	}
	for d, n := range counts {
		s.Denominations = append(s.Denominations, DenominationCount{Denomination: d, Count: n})
	}
	sort.Slice(s.Denominations, func(i, j int) bool {
		a, b := s.Denominations[i], s.Denominations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Denomination < b.Denomination
	})
	s.DataCompleteness = Completeness{
		HasAddress: ratio(address, len(places)),
		HasPhone:   ratio(phone, len(places)),
		HasWebsite: ratio(website, len(places)),
	}
	return s
}
