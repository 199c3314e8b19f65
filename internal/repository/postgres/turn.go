package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/convoflow/convoflow-backend/internal/repository"
)

// TurnRepository implements repository.TurnRepository using PostgreSQL.
// The turns table is append-only; there is no update path.
type TurnRepository struct {
	db *sqlx.DB
}

// NewTurnRepository creates a new PostgreSQL turn repository
func NewTurnRepository(db *sqlx.DB) repository.TurnRepository {
	return &TurnRepository{db: db}
}

// Append durably stores one turn and returns its id. The turn is normalized
// first; out-of-union content never reaches the table.
func (r *TurnRepository) Append(ctx context.Context, turn repository.Turn) (string, error) {
	turn, err := repository.ValidateTurn(turn)
	if err != nil {
		return "", err
	}
	turn.ID = uuid.New().String()
	turn.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO turns (id, session_id, role, content, created_at)
		VALUES (:id, :session_id, :role, :content, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, turn); err != nil {
		return "", err
	}

	return turn.ID, nil
}

// ListBySession retrieves turns for a session ascending by created_at. The
// serial seq column breaks ties in insertion order.
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID string) ([]repository.Turn, error) {
	var turns []repository.Turn
	query := `
		SELECT id, session_id, role, content, seq, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	err := r.db.SelectContext(ctx, &turns, query, sessionID)
	if err != nil {
		return nil, err
	}

	return turns, nil
}

// DeleteBySession removes all turns for a session (administrative path only).
func (r *TurnRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	query := `DELETE FROM turns WHERE session_id = $1`
	_, err := r.db.ExecContext(ctx, query, sessionID)
	return err
}
