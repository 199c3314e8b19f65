package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/convoflow/convoflow-backend/internal/api/handlers"
	"github.com/convoflow/convoflow-backend/internal/chat"
	"github.com/convoflow/convoflow-backend/internal/providers"
	"github.com/convoflow/convoflow-backend/internal/repository"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	manager *chat.Manager,
	sessions repository.SessionRepository,
	turns repository.TurnRepository,
	registry *providers.Registry,
) {
	api := app.Group("/api/v1")

	chatHandler := handlers.NewChatHandler(manager)
	api.Post("/chat", chatHandler.Chat)
	api.Post("/chat/stream", chatHandler.StreamChatSSE)
	api.Get("/chat/ws", websocket.New(chatHandler.StreamChatWS))

	sessionHandlers := handlers.NewSessionHandlers(sessions, turns)
	api.Get("/sessions", sessionHandlers.List)
	api.Get("/sessions/:id", sessionHandlers.Get)
	api.Get("/sessions/:id/messages", sessionHandlers.Messages)
	api.Delete("/sessions/:id", sessionHandlers.Delete)

	api.Get("/providers", handlers.ListProviders(registry))
	api.Get("/providers/:id/models", handlers.ListModels(registry))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "convoflow-backend",
		})
	})
}

// ErrorHandler maps the chat error taxonomy to HTTP status codes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var validationErr *chat.ValidationError
	var persistenceErr *chat.PersistenceError
	var invocationErr *chat.ModelInvocationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		code = fiber.StatusBadRequest
	case errors.As(err, &persistenceErr):
		code = fiber.StatusServiceUnavailable
	case errors.As(err, &invocationErr):
		code = fiber.StatusBadGateway
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
