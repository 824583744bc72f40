package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lancenter/backend/services/terminals-service/internal/models"
)

// SessionRepository handles persistence of rental sessions.
type SessionRepository struct {
	q querier
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{q: db}
}

const sessionColumns = `id, tenant_id, terminal_id, customer_name, mode, start_time, end_time, actual_end_time, price, is_paid, active`

// ActiveSession returns the active session of a terminal or nil.
func (r *SessionRepository) ActiveSession(ctx context.Context, key models.TerminalKey) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1 AND terminal_id = $2 AND active
	`
	s, err := scanSession(r.q.QueryRowContext(ctx, query, key.TenantID, key.TerminalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session on %s: %w", key, err)
	}
	return s, nil
}

// Session returns a session by id or nil.
func (r *SessionRepository) Session(ctx context.Context, tenantID, sessionID string) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1 AND id = $2
	`
	s, err := scanSession(r.q.QueryRowContext(ctx, query, tenantID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return s, nil
}

// SessionsStarted returns sessions whose start time lies in [from, to), newest first.
// An empty terminalID matches every terminal.
func (r *SessionRepository) SessionsStarted(ctx context.Context, tenantID string, from, to time.Time, terminalID string) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1
		  AND start_time >= $2 AND start_time < $3
		  AND ($4 = '' OR terminal_id = $4)
		ORDER BY start_time DESC, id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID, from, to, terminalID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// InsertSession stores a new session.
func (r *SessionRepository) InsertSession(ctx context.Context, s *models.Session) error {
	const query = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.TenantID,
		s.TerminalID,
		s.CustomerName,
		s.Mode,
		s.StartTime,
		s.EndTime,
		s.ActualEnd,
		s.Price,
		s.Paid,
		s.Active,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

// UpdateSession overwrites the mutable fields of a session.
func (r *SessionRepository) UpdateSession(ctx context.Context, s *models.Session) error {
	const query = `
		UPDATE sessions
		SET terminal_id = $3,
		    customer_name = $4,
		    mode = $5,
		    end_time = $6,
		    actual_end_time = $7,
		    price = $8,
		    is_paid = $9,
		    active = $10
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := r.q.ExecContext(ctx, query,
		s.TenantID,
		s.ID,
		s.TerminalID,
		s.CustomerName,
		s.Mode,
		s.EndTime,
		s.ActualEnd,
		s.Price,
		s.Paid,
		s.Active,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, sql.ErrNoRows)
	}
	return nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	if err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.TerminalID,
		&s.CustomerName,
		&s.Mode,
		&s.StartTime,
		&s.EndTime,
		&s.ActualEnd,
		&s.Price,
		&s.Paid,
		&s.Active,
	); err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	return &s, nil
}
