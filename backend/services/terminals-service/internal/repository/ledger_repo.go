package repository

import (
	"context"
	"database/sql"
	"fmt"

	"lancenter/backend/services/terminals-service/internal/models"
)

// LedgerRepository persists the append-only charges and session events.
type LedgerRepository struct {
	q querier
}

// NewLedgerRepository returns repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{q: db}
}

// Charges returns the charges of a session in creation order.
func (r *LedgerRepository) Charges(ctx context.Context, tenantID, sessionID string) ([]models.Charge, error) {
	const query = `
		SELECT id, session_id, tenant_id, terminal_id, description, price, created_at
		FROM charges
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY created_at, id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var charges []models.Charge
	for rows.Next() {
		var c models.Charge
		if err := rows.Scan(
			&c.ID,
			&c.SessionID,
			&c.TenantID,
			&c.TerminalID,
			&c.Description,
			&c.Price,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return charges, nil
}

// InsertCharge appends a charge.
func (r *LedgerRepository) InsertCharge(ctx context.Context, c *models.Charge) error {
	const query = `
		INSERT INTO charges (id, session_id, tenant_id, terminal_id, description, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query, c.ID, c.SessionID, c.TenantID, c.TerminalID, c.Description, c.Price, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

// Events returns the audit trail of a session in order.
func (r *LedgerRepository) Events(ctx context.Context, tenantID, sessionID string) ([]models.SessionEvent, error) {
	const query = `
		SELECT id, session_id, tenant_id, terminal_id, type, description, minutes, price, created_at
		FROM session_events
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY created_at, id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.SessionEvent
	for rows.Next() {
		var (
			e       models.SessionEvent
			minutes sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.TenantID,
			&e.TerminalID,
			&e.Type,
			&e.Description,
			&minutes,
			&e.Price,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if minutes.Valid {
			m := int(minutes.Int64)
			e.Minutes = &m
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// InsertEvent appends an audit event.
func (r *LedgerRepository) InsertEvent(ctx context.Context, e *models.SessionEvent) error {
	const query = `
		INSERT INTO session_events (id, session_id, tenant_id, terminal_id, type, description, minutes, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var minutes sql.NullInt64
	if e.Minutes != nil {
		minutes = sql.NullInt64{Int64: int64(*e.Minutes), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, query, e.ID, e.SessionID, e.TenantID, e.TerminalID, e.Type, e.Description, minutes, e.Price, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
