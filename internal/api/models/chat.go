package models

import "time"

// ChatMessage is the incoming user message.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest submits one conversational turn. OwnerID is required when
// SessionID is absent.
type ChatRequest struct {
	SessionID string      `json:"session_id,omitempty"`
	OwnerID   string      `json:"owner_id,omitempty"`
	Message   ChatMessage `json:"message"`
}

// ChatResponse is the non-streaming response shape.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// StreamEvent is one websocket/SSE frame of a streamed response.
type StreamEvent struct {
	Type      string `json:"type"` // "delta", "done", "error"
	Delta     string `json:"delta,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MessageView is one turn in the history read interface.
type MessageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryResponse lists a session's turns ascending by creation time.
type HistoryResponse struct {
	Messages []MessageView `json:"messages"`
}
