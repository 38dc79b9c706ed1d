// Package server exposes the device over HTTP: JSON endpoints for each
// protocol channel, Prometheus metrics, and a websocket feed of frame
// events.
package server

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openg2/g2ctl/internal/auth"
	"github.com/openg2/g2ctl/internal/config"
	"github.com/openg2/g2ctl/internal/observability"
	"github.com/openg2/g2ctl/internal/protocol/notify"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/textpage"
)

// DeviceController is the slice of the device layer the HTTP surface
// drives.
type DeviceController interface {
	Authenticate(ctx context.Context, ep session.Endpoint) error
	ShowQA(ctx context.Context, ep session.Endpoint, question, answer string) error
	RunTeleprompter(ctx context.Context, ep session.Endpoint, text string, profile textpage.Profile, manualMode bool) error
	PushNotification(ctx context.Context, n notify.Notification, now time.Time) error
}

// Server is the HTTP/websocket surface over one device pair.
type Server struct {
	cfg      config.Config
	ctrl     DeviceController
	hub      *EventHub
	router   *gin.Engine
	log      zerolog.Logger
	appeared time.Time
}

// New assembles the gin engine with logging, metrics, CORS, and optional
// token auth, and registers all routes.
func New(cfg config.Config, ctrl DeviceController, hub *EventHub, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.Server.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		hub:      hub,
		router:   r,
		log:      logger,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Serve blocks on the configured listen address.
func (s *Server) Serve() error {
	return s.router.Run(s.cfg.Server.Addr)
}

// requireToken enforces the configured static API token on a route group.
// With no token configured the middleware is a no-op.
func (s *Server) requireToken() gin.HandlerFunc {
	return auth.Middleware(s.cfg.Server.AuthToken)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
