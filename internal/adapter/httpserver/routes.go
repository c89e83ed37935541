package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(
		correlationMiddleware,
		requestLogger(),
		middleware.Recover(),
		s.httpMetrics.Middleware(),
		ErrorHandlingMiddleware(),
		middleware.SecureWithConfig(middleware.SecureConfig{
			ContentTypeNosniff: "nosniff",
			XFrameOptions:      "DENY",
			HSTSMaxAge:         63072000,
			ReferrerPolicy:     "no-referrer",
		}),
	)

	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))

	// The token form serves clients that cannot attach the session cookie to an upgrade.
	s.echo.GET("/ws/:room_id", s.handleWebSocket)
	s.echo.GET("/ws/:room_id/:token", s.handleWebSocket)
}

// Health checks and scrapes hit every few seconds and are left out of the request log.
func quietRoute(c echo.Context) bool {
	switch c.Path() {
	case "/metrics", "/health/live", "/health/ready", "/health/startup":
		return true
	}
	return false
}

// requestLogger logs one line per request at a level chosen by status: server errors at
// error, client errors at warn, everything else at info.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      quietRoute,
		LogStatus:    true,
		LogMethod:    true,
		LogRoutePath: true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("route", v.RoutePath),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			slog.LogAttrs(c.Request().Context(), level, "Request", attrs...)
			return nil
		},
	})
}
