// Package server wires the map viewer services into one HTTP handler.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-mapview/internal/api"
	"github.com/joeblew999/plat-mapview/internal/api/viewer"
	"github.com/joeblew999/plat-mapview/internal/db"
	"github.com/joeblew999/plat-mapview/internal/geocode"
	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/metrics"
	"github.com/joeblew999/plat-mapview/internal/service"
	"github.com/joeblew999/plat-mapview/internal/templates"
)

var log = logging.NewLogger("server")

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	DataDir     string
	WebDir      string // optional; serves static/ and overrides templates/fragments/
	CatalogFile string // map description, relative to DataDir unless absolute
	GeocoderURL string
	GeocoderKey string
	SessionTTL  time.Duration

	// InMemoryDB keeps DuckDB out of DataDir and skips extension downloads.
	InMemoryDB bool
}

// Server is the map viewer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	bus      *service.EventBus
	metrics  *metrics.Metrics
	services *api.Services
	viewer   *viewer.Handler
}

// New loads the catalogue and builds the routes.
func New(cfg Config) (*Server, error) {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-mapview API", api.Version)
	humaConfig.Info.Description = "Map viewer backend: layer catalogue, per-session layer trees and geocoder search."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	bus := service.NewEventBus()
	m := metrics.New()

	catalog, err := service.NewCatalogService(cfg.DataDir, cfg.CatalogFile, bus)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	m.SetCatalogLayers(len(catalog.Overlays()))

	var gc *geocode.Client
	if cfg.GeocoderURL != "" {
		gc = geocode.New(cfg.GeocoderURL, cfg.GeocoderKey)
		gc.Metrics = m
	}

	renderer, err := templates.New("")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if err := renderer.Reload(dir); err == nil {
			log.Infof("loaded fragment templates from %s", dir)
		}
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		bus:     bus,
		metrics: m,
		services: &api.Services{
			Catalog:  catalog,
			Tile:     service.NewTileService(cfg.DataDir),
			Sessions: service.NewSessionStore(catalog, bus, m, cfg.SessionTTL),
			Geocoder: gc,
		},
	}

	dbCfg := db.Config{DataDir: cfg.DataDir, DBName: "mapview"}
	if cfg.InMemoryDB {
		dbCfg = db.Config{SkipExtensions: true}
	}
	if conn, err := db.Get(dbCfg); err == nil {
		s.db = conn
	} else {
		log.Warnf("duckdb unavailable: %v", err)
	}

	s.viewer = viewer.New(renderer, s.services.Sessions, catalog, bus)
	s.viewer.Geocoder = gc
	s.viewer.Metrics = m

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Start runs the background loops until ctx is done: catalogue file
// watching, session sync and expiry, and the DuckDB catalogue mirror.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.services.Catalog.Watch(ctx, service.DefaultDebounce); err != nil {
			log.Errorf("catalog watcher: %v", err)
		}
	}()
	go s.services.Sessions.Run(ctx)
	if s.db != nil {
		go func() {
			if err := db.MirrorCatalog(ctx, s.db, s.services.Catalog, s.bus); err != nil {
				log.Errorf("catalog mirror: %v", err)
			}
		}()
	}
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.Geocoder.Enabled()).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	s.viewer.RegisterRoutes(s.humaAPI)

	s.mux.HandleFunc("/viewer", s.viewer.Page)
	s.mux.Handle("/tiles/", http.StripPrefix("/tiles/", s.handleTiles(s.services.Tile.TilesDir())))
	s.mux.Handle("/metrics", s.metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-mapview",
		"status":  "running",
		"viewer":  "/viewer",
		"docs":    "/docs",
	})
}

// handleTiles serves PMTiles archives with byte ranges and CORS headers.
func (s *Server) handleTiles(tilesDir string) http.Handler {
	files := http.FileServer(http.Dir(tilesDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		files.ServeHTTP(w, r)
	})
}
