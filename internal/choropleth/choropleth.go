// Package choropleth derives per-region colours from census tables.
package choropleth

import (
	"fmt"
	"math"

	"worship/internal/models"
)

type Mode string

const (
	ModeChange    Mode = "change"
	ModeDiversity Mode = "diversity"
)

// ParseMode accepts "" as change mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeChange:
		return ModeChange, nil
	case ModeDiversity:
		return ModeDiversity, nil
	}
	return "", fmt.Errorf("unknown choropleth mode %q", s)
}

type Class string

const (
	ClassNoData    Class = "no_data"
	ClassStable    Class = "stable"
	ClassDecrease  Class = "decrease"
	ClassIncrease  Class = "increase"
	ClassDiversity Class = "diversity"
)

// Palette holds every colour a layer can emit. Neutral covers both no data
// and stable regions.
type Palette struct {
	Neutral   string    `json:"neutral"`
	Decrease  string    `json:"decrease"`
	Increase  string    `json:"increase"`
	Diversity [5]string `json:"diversity"`
}

var DefaultPalette = Palette{
	Neutral:   "#d9d9d9",
	Decrease:  "#d73027",
	Increase:  "#1a9850",
	Diversity: [5]string{"#f7fcf5", "#c7e9c0", "#74c476", "#31a354", "#006d2c"},
}

// Region is the colour decision for one census region.
type Region struct {
	Code  string   `json:"code"`
	Name  string   `json:"name,omitempty"`
	Color string   `json:"color"`
	Class Class    `json:"class"`
	Value *float64 `json:"value"`
}

// ClassifyChange applies the threshold: below -1 decreases, above +1 increases.
func ClassifyChange(diff float64) Class {
	switch {
	case diff < -models.ChangeThreshold:
		return ClassDecrease
	case diff > models.ChangeThreshold:
		return ClassIncrease
	default:
		return ClassStable
	}
}

// PercentChange is pct(to) - pct(from) for one category. It reports false
// when either year lacks a positive "Total stated".
func PercentChange(from, to models.Counts, category string) (float64, bool) {
	a, ok := from.Percent(category)
	if !ok {
		return 0, false
	}
	b, ok := to.Percent(category)
	if !ok {
		return 0, false
	}
	return b - a, true
}

func (p Palette) changeColor(c Class) string {
	switch c {
	case ClassDecrease:
		return p.Decrease
	case ClassIncrease:
		return p.Increase
	}
	return p.Neutral
}

// Change colours one region by the change of a category between two years.
func (p Palette) Change(from, to models.Counts, category string) Region {
	diff, ok := PercentChange(from, to, category)
	if !ok {
		return Region{Color: p.Neutral, Class: ClassNoData}
	}
	class := ClassifyChange(diff)
	return Region{Color: p.changeColor(class), Class: class, Value: &diff}
}

// DiversityRegion colours one region by normalised Shannon entropy.
func (p Palette) DiversityRegion(c models.Counts) Region {
	v, ok := Entropy(c)
	if !ok {
		return Region{Color: p.Neutral, Class: ClassNoData}
	}
	return Region{Color: p.Diversity[Bin(v, len(p.Diversity))], Class: ClassDiversity, Value: &v}
}

// Bin maps v in [0,1] onto n equal-width steps.
func Bin(v float64, n int) int {
	i := int(math.Floor(v * float64(n)))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Options select what a layer shows. Year is used by diversity mode, From
// and To by change mode.
type Options struct {
	Mode     Mode
	Category string
	From     string
	To       string
	Year     string
	Palette  *Palette
}

func (o Options) validate() error {
	switch o.Mode {
	case ModeChange:
		if o.From == "" || o.To == "" {
			return fmt.Errorf("change mode needs from and to years")
		}
		if o.Category == "" {
			return fmt.Errorf("change mode needs a category")
		}
	case ModeDiversity:
		if o.Year == "" {
			return fmt.Errorf("diversity mode needs a year")
		}
	default:
		return fmt.Errorf("unknown choropleth mode %q", o.Mode)
	}
	return nil
}

// LegendItem is one swatch of the layer legend.
type LegendItem struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Layer is the full colour assignment for a census table.
type Layer struct {
	Mode     Mode         `json:"mode"`
	Category string       `json:"category,omitempty"`
	From     string       `json:"from,omitempty"`
	To       string       `json:"to,omitempty"`
	Year     string       `json:"year,omitempty"`
	Regions  []Region     `json:"regions"`
	Legend   []LegendItem `json:"legend"`
	NoData   int          `json:"no_data"`
}

// Build colours every region of the table, sorted by region code.
func Build(table models.CensusTable, opts Options) (*Layer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	p := DefaultPalette
	if opts.Palette != nil {
		p = *opts.Palette
	}
	layer := &Layer{Mode: opts.Mode, Regions: make([]Region, 0, len(table))}
	switch opts.Mode {
	case ModeChange:
		layer.Category, layer.From, layer.To = opts.Category, opts.From, opts.To
		layer.Legend = []LegendItem{
			{Color: p.Decrease, Label: fmt.Sprintf("decrease > %.0f pt", models.ChangeThreshold)},
			{Color: p.Neutral, Label: "stable or no data"},
			{Color: p.Increase, Label: fmt.Sprintf("increase > %.0f pt", models.ChangeThreshold)},
		}
	case ModeDiversity:
		layer.Year = opts.Year
		n := len(p.Diversity)
		for i, c := range p.Diversity {
			layer.Legend = append(layer.Legend, LegendItem{
				Color: c,
				Label: fmt.Sprintf("%.1f - %.1f", float64(i)/float64(n), float64(i+1)/float64(n)),
			})
		}
		layer.Legend = append(layer.Legend, LegendItem{Color: p.Neutral, Label: "no data"})
	}

	for _, code := range table.Codes() {
		rc := table[code]
		var r Region
		if opts.Mode == ModeChange {
			r = p.Change(rc.Years[opts.From], rc.Years[opts.To], opts.Category)
		} else {
			r = p.DiversityRegion(rc.Years[opts.Year])
		}
		r.Code, r.Name = code, rc.Name
		if r.Class == ClassNoData {
			layer.NoData++
		}
		layer.Regions = append(layer.Regions, r)
	}
	return layer, nil
}
