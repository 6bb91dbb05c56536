package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"worship/internal/boundary"
	"worship/internal/census"
	"worship/internal/choropleth"
	"worship/internal/models"
)

// Attribution is sent with every census payload.
const Attribution = "© Statistics New Zealand, licensed under CC BY 4.0"

const (
	defaultStartYear = 2006
	defaultEndYear   = 2018
)

var errNoCensus = &requestError{status: http.StatusServiceUnavailable, message: "Census data not configured"}

func parseLevel(name string) (string, error) {
	if name == "" {
		return models.LevelSA2, nil
	}
	l, ok := boundary.LevelByName(name)
	if !ok {
		return "", badRequest("Unknown level %q", name)
	}
	return l.Name, nil
}

// table resolves the census table for the request's level parameter.
func (s *Server) table(name string) (string, models.CensusTable, error) {
	if s.census == nil {
		return "", nil, errNoCensus
	}
	level, err := parseLevel(name)
	if err != nil {
		return "", nil, err
	}
	t, ok := s.census.CensusTable(level)
	if !ok || len(t) == 0 {
		return "", nil, notFound("No census data for level " + level)
	}
	return level, t, nil
}

func (s *Server) getBoundaries(w http.ResponseWriter, r *http.Request) {
	if s.census == nil {
		writeError(w, errNoCensus)
		return
	}
	level, err := parseLevel(mux.Vars(r)["level"])
	if err != nil {
		writeError(w, notFound("Unknown level"))
		return
	}
	body, ok := s.census.BoundaryGeoJSON(level)
	if !ok || len(body) == 0 {
		writeError(w, notFound("No boundaries for level "+level))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeBody(w, http.StatusOK, "application/geo+json", body)
}

// getDemographics serves the census table in its file format. The legacy
// name religion.json is the SA2 table.
func (s *Server) getDemographics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["level"]
	if name == "religion" {
		name = models.LevelSA2
	}
	level, t, err := s.table(name)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := s.cachedBody(cacheKey("demographics", level), func() (interface{}, error) {
		var buf bytes.Buffer
		if err := census.Encode(&buf, t); err != nil {
			return nil, err
		}
		return &buf, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=1800")
	w.Header().Set("X-Attribution", Attribution)
	writeBody(w, http.StatusOK, "application/json", body)
}

func (s *Server) getRegionSummary(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	level, t, err := s.table(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, err)
		return
	}
	summary, ok := census.Summarise(t, level, code)
	if !ok {
		writeError(w, notFound("Region not found"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getTemporal(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start_year", defaultStartYear)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryInt(r, "end_year", defaultEndYear)
	if err != nil {
		writeError(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	level, t, err := s.table(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, err)
		return
	}

	s.cachedJSON(w, cacheKey("temporal", level, start, end, category), func() (interface{}, error) {
		a, err := census.Temporal(t, census.TemporalOptions{StartYear: start, EndYear: end, Category: category})
		if err != nil {
			return nil, badRequest("%v", err)
		}
		return a, nil
	})
}

// getChoropleth colours the regions of a level. Missing years default to the
// earliest and latest years in the table.
func (s *Server) getChoropleth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := choropleth.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	level, t, err := s.table(q.Get("level"))
	if err != nil {
		writeError(w, err)
		return
	}
	opts := choropleth.Options{
		Mode:     mode,
		Category: q.Get("category"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Year:     q.Get("year"),
	}
	if years := t.Years(); len(years) > 0 {
		if opts.From == "" {
			opts.From = years[0]
		}
		if opts.To == "" {
			opts.To = years[len(years)-1]
		}
		if opts.Year == "" {
			opts.Year = years[len(years)-1]
		}
	}
	if mode == choropleth.ModeChange && opts.Category == "" {
		opts.Category = census.DefaultTrendCategory
	}

	key := cacheKey("choropleth", level, opts.Mode, opts.Category, opts.From, opts.To, opts.Year)
	s.cachedJSON(w, key, func() (interface{}, error) {
		layer, err := choropleth.Build(t, opts)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		return map[string]interface{}{"level": level, "layer": layer}, nil
	})
}

type loadTimer interface {
	LoadedAt() time.Time
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	lastUpdated := ""
	if lt, ok := s.census.(loadTimer); ok {
		lastUpdated = lt.LoadedAt().UTC().Format(time.RFC3339)
	}
	levels := []string{}
	if s.census != nil {
		for _, l := range []string{models.LevelSA2, models.LevelTA} {
			if t, ok := s.census.CensusTable(l); ok && len(t) > 0 {
				levels = append(levels, l)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":          "New Zealand Religious Demographics",
		"geographic_scope": "New Zealand SA2 statistical areas and territorial authorities",
		"levels":           levels,
		"temporal_scope":   "2006-2018 Census Years",
		"last_updated":     lastUpdated,
		"attribution": map[string]string{
			"data_source":  "Statistics New Zealand",
			"license":      "CC BY 4.0",
			"boundaries":   "New Zealand SA2 and territorial authority boundaries",
			"demographics": "New Zealand Census religious affiliation data",
		},
		"api_version": Version,
	})
}
