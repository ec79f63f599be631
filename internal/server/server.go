package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/middleware"
	"github.com/geolens-ai/query-router/internal/routing"
	"github.com/geolens-ai/query-router/internal/security"
	"github.com/geolens-ai/query-router/internal/types"
)

// FieldAvailability reports which of an endpoint's required fields the live
// inventory is missing.
type FieldAvailability interface {
	MissingFields(ep *domain.EndpointDescriptor) []string
}

// Server is the HTTP surface over the routing engine.
type Server struct {
	engine             *routing.Engine
	store              *domain.Store
	inventory          FieldAvailability
	similarity         routing.SimilarityClient // nil when semantic enhancement is off
	httpServer         *http.Server
	logger             *logrus.Logger
	config             *ServerConfig
	securityMiddleware *middleware.SecurityMiddleware
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string                               `yaml:"port"`
	ReadTimeout    time.Duration                        `yaml:"read_timeout"`
	WriteTimeout   time.Duration                        `yaml:"write_timeout"`
	MaxHeaderBytes int                                  `yaml:"max_header_bytes"`
	Security       *middleware.SecurityMiddlewareConfig `yaml:"security"`
}

// NewServer creates a new server instance.
func NewServer(engine *routing.Engine, store *domain.Store, inv FieldAvailability, similarity routing.SimilarityClient, config *ServerConfig, logger *logrus.Logger) (*Server, error) {
	server := &Server{
		engine:     engine,
		store:      store,
		inventory:  inv,
		similarity: similarity,
		logger:     logger,
		config:     config,
	}

	if config.Security != nil {
		securityMiddleware, err := middleware.NewSecurityMiddleware(config.Security, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize security middleware: %w", err)
		}
		server.securityMiddleware = securityMiddleware
	}

	return server, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting query router server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping query router server")
	if s.securityMiddleware != nil {
		s.securityMiddleware.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.securityMiddleware != nil {
		r.Use(s.securityMiddleware.Handler())
	}
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.contentTypeMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/endpoints", s.handleListEndpoints).Methods("GET")
	api.Handle("/reload", security.RequirePermission(security.PermReload)(http.HandlerFunc(s.handleReload))).Methods("POST")

	r.HandleFunc("/health", s.handleHealthCheck).Methods("GET")
	s.setupSwaggerRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && contentType != "" {
				s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers

// handleRoute classifies one query. Per-query conditions (out of scope, no
// confident match) come back as 200s carrying the structured result; only
// malformed requests produce errors.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var q types.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if q.Text == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "query text is required")
		return
	}

	result := s.engine.Route(r.Context(), q)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// endpointStatus is one endpoint descriptor plus its live availability.
type endpointStatus struct {
	domain.EndpointDescriptor
	Available     bool     `json:"available"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// handleListEndpoints describes the currently-loaded endpoint set, marking
// endpoints whose required fields are missing from the inventory as
// temporarily unavailable.
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Snapshot()

	endpoints := make([]endpointStatus, 0, len(cfg.Endpoints))
	for i := range cfg.Endpoints {
		status := endpointStatus{EndpointDescriptor: cfg.Endpoints[i], Available: true}
		if s.inventory != nil {
			if missing := s.inventory.MissingFields(&cfg.Endpoints[i]); len(missing) > 0 {
				status.Available = false
				status.MissingFields = missing
			}
		}
		endpoints = append(endpoints, status)
	}

	response := map[string]interface{}{
		"version":   cfg.Version,
		"endpoints": endpoints,
		"count":     len(endpoints),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleReload re-reads the domain configuration document. A failed reload
// leaves the previous configuration in place.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Reload()
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			s.writeErrorResponse(w, http.StatusUnprocessableEntity, cfgErr.Detail)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Reload failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "reloaded",
		"version":   cfg.Version,
		"endpoints": len(cfg.Endpoints),
		"timestamp": time.Now().Unix(),
	})
}

// handleHealthCheck reports service health. The similarity backend is probed
// when configured, but its failure only degrades the report: the keyword
// pipeline keeps serving.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Snapshot()

	response := map[string]interface{}{
		"status":         "healthy",
		"config_version": cfg.Version,
		"endpoints":      len(cfg.Endpoints),
		"timestamp":      time.Now().Unix(),
	}

	if s.similarity != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.similarity.Healthy(ctx); err != nil {
			response["status"] = "degraded"
			response["similarity"] = "unavailable"
		} else {
			response["similarity"] = "healthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Helper functions

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "api_error",
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	}
	json.NewEncoder(w).Encode(errorResp)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
