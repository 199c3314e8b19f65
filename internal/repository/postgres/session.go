package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/convoflow/convoflow-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session. A caller-supplied ID is kept as-is.
func (r *SessionRepository) Create(ctx context.Context, session *repository.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, owner_id, title, summary, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :summary, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, session)
	return err
}

// Get retrieves a session by ID. Unknown ids yield (nil, nil).
func (r *SessionRepository) Get(ctx context.Context, id string) (*repository.Session, error) {
	var session repository.Session
	query := `
		SELECT id, owner_id, title, summary, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// List retrieves all sessions for an owner, most recently active first.
func (r *SessionRepository) List(ctx context.Context, ownerID string) ([]*repository.Session, error) {
	var sessions []*repository.Session
	query := `
		SELECT id, owner_id, title, summary, created_at, updated_at
		FROM sessions
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`

	err := r.db.SelectContext(ctx, &sessions, query, ownerID)
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// UpdateSummary replaces the running summary for a session.
func (r *SessionRepository) UpdateSummary(ctx context.Context, id string, summary string) error {
	query := `UPDATE sessions SET summary = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, summary, time.Now().UTC(), id)
	return err
}

// Touch bumps updated_at after a completed exchange.
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE sessions SET updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// Delete deletes a session; turns cascade.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
