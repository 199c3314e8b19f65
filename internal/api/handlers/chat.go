package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/convoflow/convoflow-backend/internal/api/models"
	"github.com/convoflow/convoflow-backend/internal/chat"
)

// ChatHandler exposes the conversation session manager over HTTP.
type ChatHandler struct {
	manager *chat.Manager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(manager *chat.Manager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

// Chat handles POST /api/v1/chat (non-streaming).
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sessionID, content, err := h.manager.CompleteTurn(c.Context(), chat.TurnRequest{
		SessionID: req.SessionID,
		OwnerID:   req.OwnerID,
		Role:      req.Message.Role,
		Text:      req.Message.Text,
	})
	if err != nil {
		return err
	}

	c.Set("X-Session-Id", sessionID)
	return c.JSON(models.ChatResponse{SessionID: sessionID, Content: content})
}

// StreamChatSSE handles POST /api/v1/chat/stream. Text increments are
// forwarded as SSE data events; the stream is terminated by a [DONE] marker.
// The session id travels out-of-band in the X-Session-Id header.
func (h *ChatHandler) StreamChatSSE(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	stream, err := h.manager.SubmitTurn(c.Context(), chat.TurnRequest{
		SessionID: req.SessionID,
		OwnerID:   req.OwnerID,
		Role:      req.Message.Role,
		Text:      req.Message.Text,
	})
	if err != nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Session-Id", stream.SessionID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk := range stream.Events {
			if chunk.Error != "" {
				data, _ := json.Marshal(models.StreamEvent{Type: "error", Error: chunk.Error})
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
				w.Flush()
				continue
			}
			if chunk.Delta == "" {
				continue
			}
			data, _ := json.Marshal(models.StreamEvent{Type: "delta", Delta: chunk.Delta})
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	})

	return nil
}

// StreamChatWS handles WebSocket /api/v1/chat/ws. One request per
// connection; deltas are sent as JSON events terminated by a done event
// carrying the session id.
func (h *ChatHandler) StreamChatWS(c *websocket.Conn) {
	defer c.Close()

	var req models.ChatRequest
	if err := c.ReadJSON(&req); err != nil {
		c.WriteJSON(models.StreamEvent{Type: "error", Error: "Failed to parse request"})
		return
	}

	stream, err := h.manager.SubmitTurn(context.Background(), chat.TurnRequest{
		SessionID: req.SessionID,
		OwnerID:   req.OwnerID,
		Role:      req.Message.Role,
		Text:      req.Message.Text,
	})
	if err != nil {
		c.WriteJSON(models.StreamEvent{Type: "error", Error: err.Error()})
		return
	}

	clientGone := false
	for chunk := range stream.Events {
		if clientGone {
			continue // keep draining so persistence still completes
		}
		var event models.StreamEvent
		switch {
		case chunk.Error != "":
			event = models.StreamEvent{Type: "error", Error: chunk.Error}
		case chunk.Delta != "":
			event = models.StreamEvent{Type: "delta", Delta: chunk.Delta}
		default:
			continue
		}
		if err := c.WriteJSON(event); err != nil {
			clientGone = true
		}
	}

	if !clientGone {
		c.WriteJSON(models.StreamEvent{Type: "done", SessionID: stream.SessionID})
	}
}
