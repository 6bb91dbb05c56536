package osm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"worship/internal/classify"
	"worship/internal/models"
)

// IsPlaceOfWorship reports whether the tags describe a place of worship:
// amenity=place_of_worship, a religious building, religious land use, or a
// religion tag on something that is not a school, hospital or care facility.
func IsPlaceOfWorship(tags map[string]string) bool {
	if tags["amenity"] == "place_of_worship" {
		return true
	}
	if religiousBuildings[tags["building"]] {
		return true
	}
	if tags["landuse"] == "religious" {
		return true
	}
	if tags["religion"] != "" {
		switch tags["amenity"] {
		case "school", "hospital", "social_facility":
			return false
		}
		return true
	}
	return false
}

// Coordinates returns the element's position: a node's own lat/lon, the
// Overpass center, or the mean of a way's geometry.
func Coordinates(e Element) (lat, lng float64, ok bool) {
	if e.Type == "node" && e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	if e.Type == "way" && len(e.Geometry) > 0 {
		for _, c := range e.Geometry {
			lat += c.Lat
			lng += c.Lon
		}
		n := float64(len(e.Geometry))
		return lat / n, lng / n, true
	}
	return 0, 0, false
}

var nameKeys = []string{"name", "name:en", "official_name", "short_name", "alt_name"}

func title(s string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(s, "_", " "))
}

// Name returns the first non-blank name tag, falling back to a generated
// "<Denomination> Place of Worship" style label.
func Name(tags map[string]string, osmID int64) string {
	for _, k := range nameKeys {
		if n := strings.TrimSpace(tags[k]); n != "" {
			return n
		}
	}
	if d := tags["denomination"]; d != "" {
		return title(d) + " Place of Worship"
	}
	if r := tags["religion"]; r != "" && r != "unknown" {
		return title(r) + " Place of Worship"
	}
	return "Place of Worship " + formatID(osmID)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

var religionVariants = map[string]string{
	"christian":    "christian",
	"christianity": "christian",
	"catholic":     "christian",
	"protestant":   "christian",
	"orthodox":     "christian",
	"muslim":       "muslim",
	"islam":        "muslim",
	"islamic":      "muslim",
	"jewish":       "jewish",
	"judaism":      "jewish",
	"jew":          "jewish",
	"hindu":        "hindu",
	"hinduism":     "hindu",
	"buddhist":     "buddhist",
	"buddhism":     "buddhist",
	"buddha":       "buddhist",
	"sikh":         "sikh",
	"sikhism":      "sikh",
	"bahai":        "bahai",
	"baha'i":       "bahai",
	"bahaism":      "bahai",
	"taoist":       "taoist",
	"taoism":       "taoist",
	"dao":          "taoist",
	"shinto":       "shinto",
	"shintoism":    "shinto",
	"jain":         "jain",
	"jainism":      "jain",
}

// UnknownReligion is the normalised value for a missing religion tag.
const UnknownReligion = "unknown"

// NormalizeReligion folds spelling variants onto one lower-case value.
// Unlisted values are returned lower-cased.
func NormalizeReligion(religion string) string {
	r := strings.ToLower(strings.TrimSpace(religion))
	if r == "" {
		return UnknownReligion
	}
	if std, ok := religionVariants[r]; ok {
		return std
	}
	return r
}

var buildingReligion = map[string]string{
	"church":    "christian",
	"cathedral": "christian",
	"chapel":    "christian",
	"mosque":    "muslim",
	"synagogue": "jewish",
}

type christianKey struct {
	key   string
	label string
}

// Ordered: the first key contained in the tag wins.
var christianDenominations = []christianKey{
	{"anglican", "Anglican"},
	{"catholic", "Catholic"},
	{"roman_catholic", "Catholic"},
	{"orthodox", "Orthodox"},
	{"presbyterian", "Presbyterian"},
	{"methodist", "Methodist"},
	{"baptist", "Baptist"},
	{"lutheran", "Lutheran"},
	{"pentecostal", "Pentecostal"},
	{"reformed", "Reformed"},
	{"evangelical", "Evangelical"},
	{"uniting", "Uniting Church"},
	{"salvation_army", "Salvation Army"},
	{"seventh_day_adventist", "Seventh-day Adventist"},
	{"jehovahs_witness", "Jehovah's Witnesses"},
	{"mormon", "Latter-day Saints"},
	{"quaker", "Quaker"},
	{"brethren", "Brethren"},
}

// ChristianOther is returned when no Christian denomination can be inferred.
const ChristianOther = "Christian (Other)"

// ChristianDenomination infers a denomination from the denomination tag,
// then the name, then the operator.
func ChristianDenomination(tags map[string]string) string {
	denom := strings.ToLower(tags["denomination"])
	for _, c := range christianDenominations {
		if strings.Contains(denom, c.key) {
			return c.label
		}
	}
	for _, field := range []string{"name", "operator"} {
		v := strings.ToLower(tags[field])
		for _, c := range christianDenominations {
			if strings.Contains(v, strings.ReplaceAll(c.key, "_", " ")) {
				return c.label
			}
		}
	}
	return ChristianOther
}

var religionDenomination = map[string]string{
	"muslim":   "Islam",
	"islamic":  "Islam",
	"jewish":   "Judaism",
	"buddhist": "Buddhism",
	"hindu":    "Hinduism",
	"sikh":     "Sikhism",
	"bahai":    "Baháʼí Faith",
	"shinto":   "Shinto",
	"taoist":   "Taoism",
	"jain":     "Jainism",
}

// UnknownDenomination is returned when nothing identifies the denomination.
const UnknownDenomination = "Unknown"

// Denomination returns the denomination tag when present, otherwise a label
// inferred from the religion tag and then the building type.
func Denomination(tags map[string]string) string {
	if d := strings.TrimSpace(tags["denomination"]); d != "" {
		return d
	}
	religion := strings.ToLower(tags["religion"])
	if religion == "christian" {
		return ChristianDenomination(tags)
	}
	if d, ok := religionDenomination[religion]; ok {
		return d
	}
	switch strings.ToLower(tags["building"]) {
	case "church", "cathedral", "chapel":
		return ChristianDenomination(tags)
	case "mosque":
		return "Islam"
	case "synagogue":
		return "Judaism"
	}
	return UnknownDenomination
}

// Address joins the addr:* tags into one line.
func Address(tags map[string]string) string {
	var parts []string
	switch {
	case tags["addr:housenumber"] != "" && tags["addr:street"] != "":
		parts = append(parts, tags["addr:housenumber"]+" "+tags["addr:street"])
	case tags["addr:street"] != "":
		parts = append(parts, tags["addr:street"])
	}
	switch {
	case tags["addr:city"] != "":
		parts = append(parts, tags["addr:city"])
	case tags["addr:suburb"] != "":
		parts = append(parts, tags["addr:suburb"])
	}
	for _, k := range []string{"addr:state", "addr:postcode", "addr:country"} {
		if tags[k] != "" {
			parts = append(parts, tags[k])
		}
	}
	return strings.Join(parts, ", ")
}

// StartDate returns the first of start_date, construction_date, opening_date.
func StartDate(tags map[string]string) string {
	for _, k := range []string{"start_date", "construction_date", "opening_date"} {
		if tags[k] != "" {
			return tags[k]
		}
	}
	return ""
}

var keptTags = []string{"amenity", "building", "religion", "denomination", "service_times", "wheelchair", "internet_access", "wikipedia"}

func rawTags(tags map[string]string) map[string]string {
	out := make(map[string]string)
	for _, k := range keptTags {
		if v, ok := tags[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	requiredTags    = []string{"name", "amenity"}
	helpfulTags     = []string{"denomination", "religion", "addr:street", "addr:city", "website", "phone"}
	placeholderName = map[string]bool{"Unknown": true, "unknown": true, "": true, "TBD": true, "TODO": true}
)

// Confidence scores how much to trust an element, in [0, 1] to three
// decimals. It rewards tag completeness and mapped areas, and penalises
// first versions, stale edits, fixme tags and placeholder names.
func Confidence(e Element, now time.Time) float64 {
	score := 1.0

	present := func(keys []string) float64 {
		n := 0
		for _, k := range keys {
			if e.has(k) {
				n++
			}
		}
		return float64(n) / float64(len(keys))
	}
	completeness := present(requiredTags)*0.7 + present(helpfulTags)*0.3
	score *= 0.5 + 0.5*completeness

	switch e.Type {
	case "node":
		score *= 0.9
	case "relation":
		score *= 1.1
	}

	version := e.Version
	if version == 0 {
		version = 1
	}
	switch {
	case version == 1:
		score *= 0.8
	case version > 10:
		score *= 0.95
	}

	if e.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			score *= 0.9
		} else {
			days := int(now.Sub(ts).Hours() / 24)
			switch {
			case days < 365:
			case days < 365*3:
				score *= 0.95
			default:
				score *= 0.9
			}
		}
	}

	if e.has("fixme") || e.has("FIXME") {
		score *= 0.6
	}
	if name, ok := e.Tags["name"]; ok && placeholderName[name] {
		score *= 0.5
	}

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1000) / 1000
}

// Classifier assigns a display category.
type Classifier interface {
	Classify(religion, denomination string) classify.Classification
}

// Processor converts elements for one country and dataset.
type Processor struct {
	CountryCode string
	Dataset     string
	Now         time.Time
	Classifier  Classifier
}

// Place converts one element. It reports false for elements that are not
// places of worship or have no position.
func (p Processor) Place(e Element) (models.Place, bool) {
	if !IsPlaceOfWorship(e.Tags) {
		return models.Place{}, false
	}
	lat, lng, ok := Coordinates(e)
	if !ok {
		return models.Place{}, false
	}

	religion := NormalizeReligion(e.tag("religion"))
	if religion == UnknownReligion {
		if r, ok := buildingReligion[strings.ToLower(e.tag("building"))]; ok {
			religion = r
		}
	}
	denomination := Denomination(e.Tags)

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	dataset := p.Dataset
	if dataset == "" {
		dataset = models.DatasetChurches
	}
	c := p.Classifier
	if c == nil {
		c = classify.Default()
	}

	place := models.Place{
		ID:           models.PlaceID(e.Type, e.ID),
		OSMID:        e.ID,
		OSMType:      e.Type,
		Lat:          lat,
		Lng:          lng,
		Name:         Name(e.Tags, e.ID),
		Religion:     religion,
		Denomination: denomination,
		Category:     c.Classify(religion, denomination).Category,
		Confidence:   Confidence(e, now),
		CountryCode:  strings.ToUpper(p.CountryCode),
		Dataset:      dataset,
		Website:      e.tag("website"),
		Phone:        e.tag("phone"),
		Address:      Address(e.Tags),
		StartDate:    StartDate(e.Tags),
		Tags:         rawTags(e.Tags),
	}
	if place.Validate() != nil {
		return models.Place{}, false
	}
	return place, true
}

// Places converts every element, keeping the first occurrence of each id.
// skipped counts elements that produced no place.
func (p Processor) Places(elements []Element) (places []models.Place, skipped int) {
	seen := make(map[string]bool, len(elements))
	for _, e := range elements {
		place, ok := p.Place(e)
		if !ok {
			skipped++
			continue
		}
		if seen[place.ID] {
			continue
		}
		seen[place.ID] = true
		places = append(places, place)
	}
	return places, skipped
}
