package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lancenter/backend/services/terminals-service/internal/models"
)

// TerminalRepository handles persistence of terminals.
type TerminalRepository struct {
	q querier
}

// NewTerminalRepository returns repository.
func NewTerminalRepository(db *sql.DB) *TerminalRepository {
	return &TerminalRepository{q: db}
}

// Terminal returns a terminal or nil when it does not exist.
func (r *TerminalRepository) Terminal(ctx context.Context, key models.TerminalKey) (*models.Terminal, error) {
	const query = `
		SELECT tenant_id, id, name, status, zone_id
		FROM terminals
		WHERE tenant_id = $1 AND id = $2
	`
	t, err := scanTerminal(r.q.QueryRowContext(ctx, query, key.TenantID, key.TerminalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get terminal %s: %w", key, err)
	}
	return t, nil
}

// Terminals lists the tenant's terminals in numeric id order.
func (r *TerminalRepository) Terminals(ctx context.Context, tenantID string) ([]models.Terminal, error) {
	const query = `
		SELECT tenant_id, id, name, status, zone_id
		FROM terminals
		WHERE tenant_id = $1
		ORDER BY length(id), id
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	defer rows.Close()

	var terminals []models.Terminal
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan terminal: %w", err)
		}
		terminals = append(terminals, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return terminals, nil
}

// SaveTerminal inserts or updates a terminal.
func (r *TerminalRepository) SaveTerminal(ctx context.Context, terminal *models.Terminal) error {
	const query = `
		INSERT INTO terminals (tenant_id, id, name, status, zone_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			zone_id = EXCLUDED.zone_id,
			updated_at = NOW()
	`
	_, err := r.q.ExecContext(ctx, query,
		terminal.TenantID,
		terminal.TerminalID,
		terminal.Name,
		terminal.Status,
		nullString(terminal.ZoneID),
	)
	if err != nil {
		return fmt.Errorf("save terminal %s: %w", terminal.TerminalKey, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTerminal(row rowScanner) (*models.Terminal, error) {
	var (
		t      models.Terminal
		zoneID sql.NullString
	)
	if err := row.Scan(&t.TenantID, &t.TerminalID, &t.Name, &t.Status, &zoneID); err != nil {
		return nil, err
	}
	t.ZoneID = zoneID.String
	return &t, nil
}
