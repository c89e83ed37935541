package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/broadcast"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/pscheid92/charades/internal/platform/config"
)

type roomLookup interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

type connectionAttacher interface {
	Attach(conn *websocket.Conn, userID, roomID string) *broadcast.Client
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	rooms    roomLookup
	attacher connectionAttacher

	sessionStore *sessions.CookieStore
	upgrader     websocket.Upgrader
	limits       *ConnectionLimits

	httpMetrics    *metrics.HTTPMetrics
	wsMetrics      *metrics.WebSocketMetrics
	metricsHandler http.Handler

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, rooms roomLookup, attacher connectionAttacher, reg *prometheus.Registry, wsMetrics *metrics.WebSocketMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		rooms:          rooms,
		attacher:       attacher,
		sessionStore:   setupSessionStore(cfg),
		upgrader:       newUpgrader(cfg),
		limits:         NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		httpMetrics:    metrics.NewHTTPMetrics(reg),
		wsMetrics:      wsMetrics,
		metricsHandler: metrics.Handler(reg),
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Upgraded connections are not tracked by echo and
// are closed by the coordinator.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func newUpgrader(cfg *config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     NewCheckOrigin(cfg.Origins(), !cfg.IsProduction()),
	}
}
