package repository

import (
	"context"
	"time"
)

// Turn roles. Exactly one semantic speaker per turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ValidRole reports whether role is one of the known speaker roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Session represents one durable conversation thread.
type Session struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	Summary   string    `db:"summary" json:"summary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Turn represents one message in a session's append-only history. Seq is
// assigned by the store on append and breaks created_at ties in insertion
// order; it is never set by callers.
type Turn struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   Content   `db:"content" json:"content"`
	Seq       int64     `db:"seq" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionRepository defines session storage operations.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	// Get returns (nil, nil) for an unknown id; absence is not an error.
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, ownerID string) ([]*Session, error)
	// UpdateSummary is the only mutation of session state after creation
	// besides the updated_at touch.
	UpdateSummary(ctx context.Context, id string, summary string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TurnRepository defines the append-only history log. Turns are never
// mutated or reordered; ListBySession always orders by created_at ascending
// with the store-assigned seq breaking ties in insertion order.
type TurnRepository interface {
	Append(ctx context.Context, turn Turn) (string, error)
	ListBySession(ctx context.Context, sessionID string) ([]Turn, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}
