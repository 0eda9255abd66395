package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// RequestMetrics observes finished requests
type RequestMetrics interface {
	RequestStarted()
	RecordRequest(method, route string, status int, duration time.Duration)
}

// NewCorrelationID assigns every request an id, honouring an incoming
// X-Request-ID header, and stores it in the request context so module
// loggers pick it up through WithContext.
func NewCorrelationID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// NewRequestLogger logs each request through log and, when metrics is not
// nil, records its duration by route.
func NewRequestLogger(log logger.Logger, metrics RequestMetrics) echo.MiddlewareFunc {
	requestLogger := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if metrics != nil {
				route := c.Path()
				if route == "" {
					route = "unmatched"
				}
				metrics.RecordRequest(v.Method, route, v.Status, v.Latency)
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			l := log.WithContext(c.Request().Context())
			if v.Error != nil {
				l.Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			l.Debug("request", fields...)
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := requestLogger(next)
		return func(c echo.Context) error {
			if metrics != nil {
				metrics.RequestStarted()
			}
			return h(c)
		}
	}
}
