package choropleth

import (
	"math"

	"worship/internal/models"
)

// DiversityGroups are the categories entropy is computed over. Census keys
// not listed here, and not in nonResponse, are pooled into "Other".
var DiversityGroups = []string{"Christian", "No religion", "Buddhism", "Hinduism", "Islam", "Other"}

var nonResponse = map[string]bool{
	models.TotalStatedKey:    true,
	"Object to answering":    true,
	"Not elsewhere included": true,
	"Total people":           true,
	"Total":                  true,
}

// Grouped folds raw census counts into DiversityGroups order. Māori
// Christian counts as Christian.
func Grouped(c models.Counts) []float64 {
	out := make([]float64, len(DiversityGroups))
	for key, n := range c {
		if nonResponse[key] || n <= 0 {
			continue
		}
		switch key {
		case "Christian", "Māori Christian":
			out[0] += n
		case "No religion":
			out[1] += n
		case "Buddhism":
			out[2] += n
		case "Hinduism":
			out[3] += n
		case "Islam":
			out[4] += n
		default:
			out[5] += n
		}
	}
	return out
}

// Entropy returns H / ln k with H = -Σ pᵢ ln pᵢ over the grouped counts, so a
// single-group region scores 0 and an even split scores 1. It reports false
// when "Total stated" is missing or zero, or nothing was counted.
func Entropy(c models.Counts) (float64, bool) {
	if _, ok := c.Total(); !ok {
		return 0, false
	}
	groups := Grouped(c)
	var sum float64
	for _, n := range groups {
		sum += n
	}
	if sum <= 0 {
		return 0, false
	}
	var h float64
	for _, n := range groups {
		if n == 0 {
			continue
		}
		p := n / sum
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(len(groups))), true
}
