// Package web exposes the admin calendar board over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/beekhof/admin-calendar/internal/booking"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OAuth is the Google consent flow used by the auth endpoints.
type OAuth interface {
	AuthURL() (string, error)
	Exchange(ctx context.Context, state, code string) error
	Disconnect(ctx context.Context) error
}

// Config holds server dependencies.
type Config struct {
	Board          *booking.Board
	OAuth          OAuth
	Logger         *logging.Logger
	AdminJWTSecret string
	MetricsHandler http.Handler // defaults to the global prometheus registry
}

// Server serves the admin calendar API.
type Server struct {
	board  *booking.Board
	oauth  OAuth
	logger *logging.Logger
	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	s := &Server{
		board:  cfg.Board,
		oauth:  cfg.OAuth,
		logger: cfg.Logger,
		router: chi.NewRouter(),
	}
	s.registerRoutes(cfg)
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes(cfg Config) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Public: probes, metrics and the OAuth redirect target, which Google
	// calls from the browser without the admin bearer token.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	r.Get("/oauth/callback", s.handleOAuthCallback)

	r.Group(func(admin chi.Router) {
		admin.Use(AdminJWT(cfg.AdminJWTSecret))

		admin.Route("/api/calendar", func(r chi.Router) {
			r.Get("/", s.handleCalendar)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/slots", s.handleSlots)
			r.Post("/events", s.handleCreateGoogleEvent)
		})
		admin.Post("/api/appointments", s.handleCreateAppointment)
		admin.Get("/api/auth/connect", s.handleConnect)
		admin.Post("/api/auth/disconnect", s.handleDisconnect)
		admin.Get("/calendar.ics", s.handleICS)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
