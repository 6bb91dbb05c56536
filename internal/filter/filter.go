// Package filter narrows place lists the way the map's filter controls do.
package filter

import (
	"sort"
	"strings"

	"worship/internal/classify"
	"worship/internal/models"
	"worship/pkg/geo"
)

// Classifier resolves a place's display category and denomination group.
type Classifier interface {
	Classify(religion, denomination string) classify.Classification
}

// Filter is the state of the map controls. Zero-valued fields match everything.
type Filter struct {
	Category      string
	Denomination  string
	Country       string
	MinConfidence float64
	Bounds        *geo.Bounds
}

// Empty reports whether the filter lets every place through.
func (f Filter) Empty() bool {
	return f.Category == "" && f.Denomination == "" && f.Country == "" && f.MinConfidence <= 0 && f.Bounds == nil
}

// Matcher applies a Filter with a given classifier.
type Matcher struct {
	f Filter
	c Classifier
}

// New returns a Matcher; a nil classifier uses classify.Default.
func New(f Filter, c Classifier) *Matcher {
	if c == nil {
		c = classify.Default()
	}
	return &Matcher{f: f, c: c}
}

// Match evaluates every predicate of the filter against one place.
func (m *Matcher) Match(p models.Place) bool {
	f := m.f
	if f.Bounds != nil && !f.Bounds.Contains(p.Lat, p.Lng) {
		return false
	}
	if f.MinConfidence > 0 && p.Confidence < f.MinConfidence {
		return false
	}
	if f.Country != "" && !strings.EqualFold(f.Country, p.CountryCode) {
		return false
	}
	if f.Category == "" && f.Denomination == "" {
		return true
	}
	cl := m.c.Classify(p.Religion, p.Denomination)
	if f.Category != "" && !sameLabel(f.Category, cl.Category) && !sameLabel(f.Category, p.Category) {
		return false
	}
	if f.Denomination != "" && !sameLabel(f.Denomination, cl.Denomination) && !sameLabel(f.Denomination, p.Denomination) {
		return false
	}
	return true
}

func sameLabel(want, have string) bool {
	return have != "" && classify.Normalize(want) == classify.Normalize(have)
}

// Apply keeps the places that match, in input order.
func (m *Matcher) Apply(places []models.Place) []models.Place {
	out := make([]models.Place, 0, len(places))
	for _, p := range places {
		if m.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Apply is a convenience for New(f, nil).Apply(places).
func Apply(f Filter, places []models.Place) []models.Place {
	if f.Empty() {
		return places
	}
	return New(f, nil).Apply(places)
}

// DenominationCount is one entry of the dependent denomination dropdown.
type DenominationCount struct {
	Denomination string `json:"denomination"`
	Count        int    `json:"count"`
}

// Denominations lists the denomination groups present for a category,
// most common first. An empty category lists every group.
func Denominations(places []models.Place, category string, c Classifier) []DenominationCount {
	if c == nil {
		c = classify.Default()
	}
	counts := make(map[string]int)
	for _, p := range places {
		cl := c.Classify(p.Religion, p.Denomination)
		if category != "" && !sameLabel(category, cl.Category) {
			continue
		}
		counts[cl.Denomination]++
	}
	out := make([]DenominationCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DenominationCount{Denomination: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Denomination < out[j].Denomination
	})
	return out
}
