package api

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"worship/internal/cluster"
	"worship/internal/filter"
	"worship/internal/models"
	"worship/internal/storage"
	"worship/pkg/geo"
)

// DefaultLimit caps the places returned per dataset.
const DefaultLimit = 100000

var defaultDatasets = []string{models.DatasetChurches}

// placeParams are the query parameters shared by the place endpoints.
type placeParams struct {
	bounds   geo.Bounds
	datasets []string
	query    storage.PlaceQuery
	filter   filter.Filter
}

func parsePlaceParams(r *http.Request, extended bool) (placeParams, error) {
	p := placeParams{bounds: geo.World}
	if raw := r.URL.Query().Get("bounds"); raw != "" {
		b, err := geo.ParseBounds(raw)
		if err != nil {
			return p, badRequest("Invalid bounds: %v", err)
		}
		p.bounds = b
	}
	p.datasets = queryList(r, defaultDatasets, "datasets", "dataset")
	p.query = storage.PlaceQuery{Bounds: p.bounds}
	if !extended {
		return p, nil
	}

	minConfidence, err := queryFloat(r, "confidence_min", 0)
	if err != nil {
		return p, err
	}
	q := r.URL.Query()
	p.query.MinConfidence = minConfidence
	p.query.Country = countryParam(q.Get("country"))
	p.filter = filter.Filter{Category: q.Get("category"), Denomination: q.Get("denomination")}
	return p, nil
}

// countryParam accepts an ISO code or an English country name.
func countryParam(v string) string {
	if v == "" || geo.IsCountryCode(v) {
		return v
	}
	if code := geo.CountryCode(v); code != "" {
		return code
	}
	return v
}

// load runs the store query for one dataset and applies the category and
// denomination filters, best confidence first.
func (s *Server) load(ctx context.Context, p placeParams, dataset string) ([]models.Place, error) {
	q := p.query
	q.Dataset = dataset
	places, err := s.places.Places(ctx, q)
	if err != nil {
		return nil, err
	}
	if places == nil {
		places = []models.Place{}
	}
	if p.filter.Category != "" || p.filter.Denomination != "" {
		places = filter.New(p.filter, s.classifier).Apply(places)
	}
	sort.SliceStable(places, func(i, j int) bool { return places[i].Confidence > places[j].Confidence })
	return places, nil
}

// getPlaces answers the map's viewport query. extended enables the filter
// parameters of the v1 endpoint.
func (s *Server) getPlaces(extended bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		p, err := parsePlaceParams(r, extended)
		if err != nil {
			writeError(w, err)
			return
		}
		limit, err := queryInt(r, "limit", DefaultLimit)
		if err != nil {
			writeError(w, err)
			return
		}
		if limit < 0 {
			writeError(w, badRequest("Invalid limit: %d", limit))
			return
		}

		meta := map[string]interface{}{}
		result := map[string]interface{}{"meta": meta}
		returned := 0
		for _, dataset := range p.datasets {
			places, err := s.load(r.Context(), p, dataset)
			if err != nil {
				writeError(w, err)
				return
			}
			meta[dataset] = len(places)
			if len(places) > limit {
				places = places[:limit]
			}
			result[dataset] = places
			returned += len(places)
		}
		elapsed := time.Since(start)
		meta["query_time_ms"] = math.Round(float64(elapsed.Microseconds())/10) / 100
		meta["bounds"] = p.bounds.Slice()

		log.Printf("Query completed in %v - returned %d places", elapsed, returned)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) getPlace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	place, err := s.places.Place(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, notFound("Place not found"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if place.Category == "" {
		place.Category = s.classifier.Classify(place.Religion, place.Denomination).Category
	}
	writeJSON(w, http.StatusOK, place.Detail())
}

// getClusters groups the filtered places of every requested dataset into
// grid cells for the given zoom.
func (s *Server) getClusters(w http.ResponseWriter, r *http.Request) {
	p, err := parsePlaceParams(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	zoom, err := queryInt(r, "zoom", 2)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cluster.ZoomLevel(zoom).Validate(); err != nil {
		writeError(w, badRequest("Invalid zoom: %v", err))
		return
	}

	key := cacheKey("clusters", r.URL.Query().Encode())
	s.cachedJSON(w, key, func() (interface{}, error) {
		var all []models.Place
		for _, dataset := range p.datasets {
			places, err := s.load(r.Context(), p, dataset)
			if err != nil {
				return nil, err
			}
			all = append(all, places...)
		}
		clusters, err := cluster.Build(all, cluster.Options{
			Zoom: cluster.ZoomLevel(zoom),
			CategoryOf: func(pl models.Place) string {
				if pl.Category != "" {
					return pl.Category
				}
				return s.classifier.Classify(pl.Religion, pl.Denomination).Category
			},
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"zoom":     zoom,
			"bounds":   p.bounds.Slice(),
			"datasets": p.datasets,
			"total":    len(all),
			"clusters": clusters,
		}, nil
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	s.cachedJSON(w, "stats", func() (interface{}, error) {
		stats, err := s.places.Stats(r.Context())
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(stats)+1)
		total, loaded := 0, 0
		for name, st := range stats {
			out[name] = st
			total += st.Count
			if st.Count > 0 {
				loaded++
			}
		}
		out["global"] = map[string]int{"total_places": total, "datasets": loaded}
		return out, nil
	})
}

func (s *Server) getCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": s.classifier.Legend()})
}

// getDenominations lists the denomination groups present for a category in
// the requested datasets and bounds.
func (s *Server) getDenominations(w http.ResponseWriter, r *http.Request) {
	p, err := parsePlaceParams(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	category := p.filter.Category
	p.filter = filter.Filter{Category: category}

	key := cacheKey("denominations", r.URL.Query().Encode())
	s.cachedJSON(w, key, func() (interface{}, error) {
		var all []models.Place
		for _, dataset := range p.datasets {
			places, err := s.load(r.Context(), p, dataset)
			if err != nil {
				return nil, err
			}
			all = append(all, places...)
		}
		return map[string]interface{}{
			"category":      category,
			"denominations": filter.Denominations(all, category, s.classifier),
		}, nil
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats, err := s.places.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	total, loaded := 0, 0
	for _, st := range stats {
		total += st.Count
		if st.Count > 0 {
			loaded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"datasets_loaded": loaded,
		"total_places":    total,
	})
}

func (s *Server) healthV1(w http.ResponseWriter, r *http.Request) {
	database := "not configured"
	if p, ok := s.places.(pinger); ok {
		database = "connected"
		if err := p.Ping(r.Context()); err != nil {
			log.Printf("Database ping failed: %v", err)
			database = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"database":         database,
		"cache":            "connected",
		"cached_responses": s.cache.ItemCount(),
	})
}
