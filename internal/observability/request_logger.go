package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs each request and records request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		metrics.RecordRequest(route, c.Method(), status, latency)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("request completed", fields...)
		} else {
			logger.Debug("request completed", fields...)
		}
		return err
	}
}
