package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DependencyCheck probes one backing service for readiness.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []DependencyCheck
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	for _, dep := range h.checks {
		if err := dep.Check(ctx); err != nil {
			depStatus[dep.Name] = err.Error()
			ready = false
		} else {
			depStatus[dep.Name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
