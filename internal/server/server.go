// Package server assembles the map view HTTP server.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-map/internal/api"
	"github.com/joeblew999/plat-map/internal/db"
	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/layers"
	"github.com/joeblew999/plat-map/internal/mapdata"
	"github.com/joeblew999/plat-map/internal/mapview"
	"github.com/joeblew999/plat-map/internal/overlay"
	"github.com/joeblew999/plat-map/internal/templates"
	"github.com/joeblew999/plat-map/internal/webapi"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and fragment overrides

	// Fixture is a GeoJSON file served on the /api/web data endpoints.
	Fixture string
	// Upstream is the base URL overlays fetch from. Empty uses this server
	// when a fixture is loaded and disables overlays otherwise.
	Upstream          string
	RequestsPerSecond float64
	Debounce          time.Duration
	ExportURL         string

	Logger *slog.Logger
}

// Server is the map view HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	links    humastar.Links
}

// New creates a new server. Failing to open the database is not fatal:
// preferences are then not persisted.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger

	s := &Server{config: cfg, mux: http.NewServeMux()}

	humaConfig := huma.DefaultConfig("plat-map API", api.Version)
	humaConfig.Info.Description = "Map view state, short links, layers and viewport synchronized overlays."
	humaConfig.Servers = []*huma.Server{
		{URL: s.baseURL(), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = nil
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	configs, err := layers.Load(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	registry, err := layers.NewRegistry(configs)
	if err != nil {
		return nil, err
	}

	var renderer *templates.Renderer
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, err := os.Stat(fragmentsDir); err == nil {
			if renderer, err = templates.New(fragmentsDir); err != nil {
				return nil, err
			}
			logger.Info("loaded fragment templates", "dir", fragmentsDir)
		}
	}

	svc := &api.Services{
		Registry: registry,
		Renderer: renderer,
		ViewDefaults: mapview.Config{
			Debounce:  cfg.Debounce,
			ExportURL: cfg.ExportURL,
		},
		Info:   api.InfoConfig{DataDir: cfg.DataDir},
		Logger: logger,
	}

	if conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "mapview"}); err != nil {
		logger.Warn("database unavailable, preferences will not be stored", "error", err)
	} else if prefs, err := db.NewPrefs(context.Background(), conn); err != nil {
		logger.Warn("preferences unavailable", "error", err)
		conn.Close()
	} else {
		s.db = conn
		svc.Prefs = prefs
		svc.Info.DB = true
	}

	if cfg.Fixture != "" {
		store, err := mapdata.Load(cfg.Fixture, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		svc.Data = store
	}

	upstream := cfg.Upstream
	if upstream == "" && svc.Data != nil {
		upstream = s.baseURL()
	}
	deps := mapview.Deps{Registry: registry, Prefs: svc.Prefs, Logger: logger}
	if upstream != "" {
		client := webapi.New(webapi.Options{
			BaseURL:           upstream,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		})
		deps.Sources = map[string]overlay.Source{
			"data":  webapi.MapSource{Client: client},
			"notes": webapi.NoteSource{Client: client},
		}
		svc.Info.Upstream = upstream
	}
	svc.Views = mapview.NewManager(deps)
	s.services = svc

	s.routes()
	return s, nil
}

func (s *Server) baseURL() string {
	host := s.config.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, s.config.Port)
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Views returns the live view manager.
func (s *Server) Views() *mapview.Manager {
	return s.services.Views
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes all views and the database.
func (s *Server) Close() error {
	if s.services != nil && s.services.Views != nil {
		s.services.Views.CloseAll()
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST and SSE routes (OpenAPI-documented)
	api.RegisterRoutes(s.humaAPI, s.services)
	s.links.Build(s.humaAPI)

	// Static files and pages
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleRoot serves web/templates/index.html when present, and the service
// status otherwise. Map state lives in the fragment so "/" serves every map.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.config.WebDir != "" {
		index := filepath.Join(s.config.WebDir, "templates", "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			s.config.Logger.Warn("failed to stat index page", "path", index, "error", err)
		}
	}
	for _, link := range s.links.For("/health") {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "plat-map",
		"status":  "running",
		"views":   s.services.Views.Len(),
	})
}
