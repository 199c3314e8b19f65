package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/convoflow/convoflow-backend/internal/api/models"
	"github.com/convoflow/convoflow-backend/internal/repository"
)

// SessionHandlers serves the session and history read interfaces plus the
// administrative deletion path.
type SessionHandlers struct {
	sessions repository.SessionRepository
	turns    repository.TurnRepository
}

// NewSessionHandlers creates session handlers over the given repositories.
func NewSessionHandlers(sessions repository.SessionRepository, turns repository.TurnRepository) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, turns: turns}
}

// List handles GET /api/v1/sessions?owner_id=...
func (h *SessionHandlers) List(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id query parameter is required",
		})
	}

	sessions, err := h.sessions.List(c.Context(), ownerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandlers) Get(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(session)
}

// Messages handles GET /api/v1/sessions/:id/messages, returning turns
// ascending by createdAt. An unknown session yields an empty list.
func (h *SessionHandlers) Messages(c *fiber.Ctx) error {
	turns, err := h.turns.ListBySession(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	views := make([]models.MessageView, len(turns))
	for i, turn := range turns {
		views[i] = models.MessageView{
			ID:        turn.ID,
			Role:      turn.Role,
			Content:   turn.Content.PromptText(),
			CreatedAt: turn.CreatedAt,
		}
	}

	return c.JSON(models.HistoryResponse{Messages: views})
}

// Delete handles DELETE /api/v1/sessions/:id. Administrative: removes the
// session row and all its turns.
func (h *SessionHandlers) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.turns.DeleteBySession(c.Context(), id); err != nil {
		return err
	}
	if err := h.sessions.Delete(c.Context(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
