package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/api/ws"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/storage"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health              *handlers.HealthHandler
	Chats               *handlers.ChatsHandler
	Realtime            *ws.Handler
	AuthMiddleware      *auth.AuthMiddleware
	Metrics             fiber.Handler
	LocalAttachmentsDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}
	if cfg.LocalAttachmentsDir != "" {
		app.Static(storage.LocalURLPrefix, cfg.LocalAttachmentsDir)
	}

	chats := app.Group("/chats", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	chats.Post("/", cfg.Chats.CreateChat)
	chats.Get("/", cfg.Chats.ListChats)
	chats.Get("/:id", cfg.Chats.GetChat)
	chats.Delete("/:id", cfg.Chats.DeleteChat)
	chats.Get("/:id/messages", cfg.Chats.ListMessages)
	chats.Post("/:id/messages", cfg.Chats.SendMessage)
	chats.Post("/:id/read", cfg.Chats.MarkRead)
	chats.Post("/:id/close", cfg.Chats.CloseChat)
	chats.Post("/:id/assign", auth.RequireStaff(), cfg.Chats.AssignChat)
	chats.Get("/:id/history", auth.RequireStaff(), cfg.Chats.History)

	if cfg.Realtime != nil {
		app.Get("/ws", cfg.AuthMiddleware.Handle, cfg.Realtime.Upgrade, cfg.Realtime.Serve())
	}
}
