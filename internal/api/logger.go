package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is an access log middleware.
func Logger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			// skip metric and health endpoints
			if strings.HasPrefix(c.Path(), "/metrics") || c.Path() == "/healthz" {
				return nil
			}

			req := c.Request()
			res := c.Response()
			fields := []zapcore.Field{
				zap.String("remote_ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request", fmt.Sprintf("%s %s", req.Method, req.RequestURI)),
				zap.String("user_agent", req.UserAgent()),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}

			n := res.Status
			switch {
			case n >= 500:
				log.With(zap.Error(err)).Error("Server error", fields...)
			case n >= 400:
				log.With(zap.Error(err)).Warn("Client error", fields...)
			default:
				log.Info("Success", fields...)
			}

			return nil
		}
	}
}
