// Package classify groups raw OpenStreetMap religion and denomination tag
// values into the broad categories the map is coloured by.
package classify

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed denominations.yaml
var defaultTable []byte

// substring matching ignores very short keys such as "lds" or "dao".
const minSubstringKey = 4

type groupDef struct {
	Label string   `yaml:"label"`
	Match []string `yaml:"match"`
}

type categoryDef struct {
	Name      string     `yaml:"name"`
	Color     string     `yaml:"color"`
	Icon      string     `yaml:"icon"`
	Religions []string   `yaml:"religions"`
	Groups    []groupDef `yaml:"groups"`
}

type tableDef struct {
	Categories []categoryDef `yaml:"categories"`
	Fallback   categoryDef   `yaml:"fallback"`
}

// Classification is the display grouping for one place.
type Classification struct {
	Category     string `json:"category"`
	Denomination string `json:"denomination"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
}

// LegendEntry describes one category for a map legend.
type LegendEntry struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Icon          string   `json:"icon"`
	Denominations []string `json:"denominations"`
}

type ref struct {
	cat   int
	label string
}

// Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	cats      []categoryDef // fallback is the last element
	religions map[string]int
	global    map[string]ref
	local     []map[string]string
}

// Normalize folds a raw tag value into the form match keys are written in.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("'", "", "’", "", "ʼ", "", "-", "_", " ", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// New reads a YAML lookup table.
func New(r io.Reader) (*Mapper, error) {
	var def tableDef
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, fmt.Errorf("decode denomination table: %w", err)
	}
	if def.Fallback.Name == "" {
		return nil, fmt.Errorf("denomination table: fallback category has no name")
	}
	m := &Mapper{
		cats:      append(def.Categories, def.Fallback),
		religions: make(map[string]int),
		global:    make(map[string]ref),
	}
	for i, c := range m.cats {
		if c.Name == "" {
			return nil, fmt.Errorf("denomination table: category %d has no name", i)
		}
		name := Normalize(c.Name)
		if _, dup := m.religions[name]; dup {
			return nil, fmt.Errorf("denomination table: duplicate category %q", c.Name)
		}
		m.religions[name] = i
		for _, alias := range c.Religions {
			if k := Normalize(alias); k != "" {
				if _, taken := m.religions[k]; !taken {
					m.religions[k] = i
				}
			}
		}

		local := make(map[string]string)
		for _, g := range c.Groups {
			if g.Label == "" {
				return nil, fmt.Errorf("denomination table: group without label in %q", c.Name)
			}
			keys := append([]string{g.Label}, g.Match...)
			for _, k := range keys {
				k = Normalize(k)
				if k == "" {
					continue
				}
				if prev, dup := local[k]; dup && prev != g.Label {
					return nil, fmt.Errorf("denomination table: %q matches both %q and %q", k, prev, g.Label)
				}
				local[k] = g.Label
				m.addGlobal(k, ref{cat: i, label: g.Label})
			}
		}
		other := m.otherLabel(i)
		local[Normalize(other)] = other
		m.addGlobal(Normalize(other), ref{cat: i, label: other})
		m.local = append(m.local, local)
	}
	return m, nil
}

func (m *Mapper) addGlobal(k string, r ref) {
	if _, taken := m.global[k]; !taken {
		m.global[k] = r
	}
}

var (
	defaultOnce   sync.Once
	defaultMapper *Mapper
)

// Default returns the mapper built from the embedded table.
func Default() *Mapper {
	defaultOnce.Do(func() {
		m, err := New(strings.NewReader(string(defaultTable)))
		if err != nil {
			panic(err)
		}
		defaultMapper = m
	})
	return defaultMapper
}

func (m *Mapper) fallback() int { return len(m.cats) - 1 }

// otherLabel is the group for members of a category that match no listed
// group. Categories without groups use their own name.
func (m *Mapper) otherLabel(i int) string {
	if len(m.cats[i].Groups) == 0 {
		return m.cats[i].Name
	}
	return m.cats[i].Name + " (Other)"
}

func (m *Mapper) result(i int, label string) Classification {
	c := m.cats[i]
	return Classification{Category: c.Name, Denomination: label, Color: c.Color, Icon: c.Icon}
}

// Classify resolves a religion/denomination tag pair. The religion picks the
// category when it is recognised; the denomination then picks a group inside
// it. Feeding a Classification back in returns it unchanged.
func (m *Mapper) Classify(religion, denomination string) Classification {
	rel, den := Normalize(religion), Normalize(denomination)

	cat, known := -1, false
	var relRef *ref
	if rel != "" {
		if i, ok := m.religions[rel]; ok {
			cat, known = i, true
		} else if r, ok := m.global[rel]; ok {
			cat, known, relRef = r.cat, true, &r
		}
	}
	if known && cat == m.fallback() {
		known = false
	}

	if !known {
		if den == "" {
			return m.unknown()
		}
		if r, ok := m.global[den]; ok {
			return m.result(r.cat, r.label)
		}
		if i, ok := m.religions[den]; ok && i != m.fallback() {
			return m.result(i, m.otherLabel(i))
		}
		return m.unknown()
	}

	if den == "" {
		if relRef != nil {
			return m.result(cat, relRef.label)
		}
		return m.result(cat, m.otherLabel(cat))
	}
	return m.result(cat, m.groupIn(cat, den))
}

func (m *Mapper) groupIn(cat int, den string) string {
	if label, ok := m.local[cat][den]; ok {
		return label
	}
	if i, ok := m.religions[den]; ok && i == cat {
		return m.otherLabel(cat)
	}
	for _, g := range m.cats[cat].Groups {
		for _, k := range g.Match {
			k = Normalize(k)
			if len(k) >= minSubstringKey && strings.Contains(den, k) {
				return g.Label
			}
		}
	}
	return m.otherLabel(cat)
}

func (m *Mapper) unknown() Classification {
	f := m.fallback()
	return m.result(f, m.otherLabel(f))
}

// Category maps a single raw religion or denomination value to its category name.
func (m *Mapper) Category(raw string) string {
	return m.Classify(raw, "").Category
}

// Unknown is the fallback category name.
func (m *Mapper) Unknown() string {
	return m.cats[m.fallback()].Name
}

// Denominations lists the group labels of a category, ending with its catch-all group.
func (m *Mapper) Denominations(category string) []string {
	i, ok := m.categoryIndex(category)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.cats[i].Groups)+1)
	for _, g := range m.cats[i].Groups {
		out = append(out, g.Label)
	}
	return append(out, m.otherLabel(i))
}

// Legend lists every category in table order, fallback last.
func (m *Mapper) Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(m.cats))
	for _, c := range m.cats {
		out = append(out, LegendEntry{Name: c.Name, Color: c.Color, Icon: c.Icon, Denominations: m.Denominations(c.Name)})
	}
	return out
}

// Color returns the display colour of a category, or the fallback colour.
func (m *Mapper) Color(category string) string {
	if i, ok := m.categoryIndex(category); ok {
		return m.cats[i].Color
	}
	return m.cats[m.fallback()].Color
}

func (m *Mapper) categoryIndex(name string) (int, bool) {
	i, ok := m.religions[Normalize(name)]
	if !ok || Normalize(m.cats[i].Name) != Normalize(name) {
		return 0, false
	}
	return i, true
}
