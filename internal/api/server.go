// Package api serves places and census layers over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"

	"worship/internal/classify"
	"worship/internal/models"
	"worship/internal/storage"
)

const (
	DefaultCacheTTL      = 10 * time.Minute
	defaultCleanupPeriod = 20 * time.Minute

	Version = "v1.0"
)

// CensusSource provides the census tables and boundary files per level.
type CensusSource interface {
	CensusTable(level string) (models.CensusTable, bool)
	BoundaryGeoJSON(level string) ([]byte, bool)
}

// Config tunes the server. Zero values fall back to defaults.
type Config struct {
	CORSOrigins []string
	CacheTTL    time.Duration
	Classifier  *classify.Mapper
}

// Server holds the handlers' dependencies and the response cache.
type Server struct {
	places     storage.PlaceStore
	census     CensusSource
	classifier *classify.Mapper
	origins    []string
	cache      *cache.Cache
	started    time.Time
}

// NewServer wires a server over a place store and an optional census source.
func NewServer(places storage.PlaceStore, census CensusSource, cfg Config) *Server {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cleanup := defaultCleanupPeriod
	if 2*ttl > cleanup {
		cleanup = 2 * ttl
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.Default()
	}
	return &Server{
		places:     places,
		census:     census,
		classifier: classifier,
		origins:    cfg.CORSOrigins,
		cache:      cache.New(ttl, cleanup),
		started:    time.Now(),
	}
}

// FlushCache drops every cached response.
func (s *Server) FlushCache() {
	s.cache.Flush()
}

// Handler returns the router with CORS, recovery and logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", "X-Attribution"},
		MaxAge:         86400,
	})

	r.Use(corsHandler.Handler)
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)

	methods := []string{http.MethodGet, http.MethodOptions}
	r.HandleFunc("/", s.getPlaces(false)).Methods(methods...)
	r.HandleFunc("/health", s.health).Methods(methods...)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/places", s.getPlaces(true)).Methods(methods...)
	api.HandleFunc("/places/clusters", s.getClusters).Methods(methods...)
	api.HandleFunc("/places/{id}", s.getPlace).Methods(methods...)
	api.HandleFunc("/stats", s.getStats).Methods(methods...)
	api.HandleFunc("/categories", s.getCategories).Methods(methods...)
	api.HandleFunc("/denominations", s.getDenominations).Methods(methods...)
	api.HandleFunc("/health", s.healthV1).Methods(methods...)

	nz := api.PathPrefix("/nz").Subrouter()
	nz.HandleFunc("/boundaries/{level:[a-z0-9]+}.geojson", s.getBoundaries).Methods(methods...)
	nz.HandleFunc("/demographics/{level:[a-z0-9]+}.json", s.getDemographics).Methods(methods...)
	nz.HandleFunc("/regions/{code}/summary", s.getRegionSummary).Methods(methods...)
	nz.HandleFunc("/analysis/temporal", s.getTemporal).Methods(methods...)
	nz.HandleFunc("/choropleth", s.getChoropleth).Methods(methods...)
	nz.HandleFunc("/metadata", s.getMetadata).Methods(methods...)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return r
}

// cachedJSON serves key from the response cache, building and storing the
// encoded body on a miss. Build errors are not cached.
func (s *Server) cachedJSON(w http.ResponseWriter, key string, build func() (interface{}, error)) {
	body, err := s.cachedBody(key, build)
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, http.StatusOK, "application/json", body)
}

func (s *Server) cachedBody(key string, build func() (interface{}, error)) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	var body []byte
	switch b := v.(type) {
	case *bytes.Buffer:
		body = b.Bytes()
	default:
		if body, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	s.cache.SetDefault(key, body)
	return body, nil
}
