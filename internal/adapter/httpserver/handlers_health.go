package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/charades/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck is one dependency checked by the startup and readiness endpoints.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	Connections int64   `json:"connections"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.runChecks(startupCheckTimeout))
	s.echo.GET("/health/ready", s.runChecks(readinessCheckTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, livenessResponse{
		Status:      "ok",
		Uptime:      time.Since(s.startTime).Seconds(),
		Connections: s.limits.Current(),
	})
}

// runChecks runs every health check concurrently and reports each failure by name.
func (s *Server) runChecks(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			failed = make(map[string]string)
		)
		for _, hc := range s.healthChecks {
			wg.Go(func() {
				err := hc.Check(ctx)
				if err == nil {
					return
				}
				slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
				mu.Lock()
				failed[hc.Name] = err.Error()
				mu.Unlock()
			})
		}
		wg.Wait()

		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, readinessResponse{Status: "unhealthy", Checks: failed})
		}
		return c.JSON(http.StatusOK, readinessResponse{Status: "ready"})
	}
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
