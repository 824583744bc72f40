package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lancenter/backend/services/terminals-service/internal/models"
)

// ZoneRepository persists price zones.
type ZoneRepository struct {
	q querier
}

// NewZoneRepository returns repository.
func NewZoneRepository(db *sql.DB) *ZoneRepository {
	return &ZoneRepository{q: db}
}

// Zones lists the tenant's zones.
func (r *ZoneRepository) Zones(ctx context.Context, tenantID string) ([]models.Zone, error) {
	const query = `
		SELECT id, tenant_id, name, tolerance, rules, is_default
		FROM zones
		WHERE tenant_id = $1
		ORDER BY is_default DESC, name
	`
	rows, err := r.q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var (
			z     models.Zone
			rules []byte
		)
		if err := rows.Scan(&z.ID, &z.TenantID, &z.Name, &z.Tolerance, &rules, &z.IsDefault); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		if err := json.Unmarshal(rules, &z.Rules); err != nil {
			return nil, fmt.Errorf("decode rules of zone %s: %w", z.ID, err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return zones, nil
}

// SaveZone upserts a zone. A default zone first clears the flag on the tenant's other zones.
func (r *ZoneRepository) SaveZone(ctx context.Context, zone *models.Zone) error {
	rules, err := json.Marshal(zone.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	if zone.IsDefault {
		const clear = `
			UPDATE zones
			SET is_default = FALSE, updated_at = NOW()
			WHERE tenant_id = $1 AND id <> $2 AND is_default
		`
		if _, err := r.q.ExecContext(ctx, clear, zone.TenantID, zone.ID); err != nil {
			return fmt.Errorf("clear default zone: %w", err)
		}
	}

	const query = `
		INSERT INTO zones (tenant_id, id, name, tolerance, rules, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			tolerance = EXCLUDED.tolerance,
			rules = EXCLUDED.rules,
			is_default = EXCLUDED.is_default,
			updated_at = NOW()
	`
	_, err = r.q.ExecContext(ctx, query, zone.TenantID, zone.ID, zone.Name, zone.Tolerance, string(rules), zone.IsDefault)
	if err != nil {
		return fmt.Errorf("save zone %s: %w", zone.ID, err)
	}
	return nil
}

// DeleteZone removes a zone.
func (r *ZoneRepository) DeleteZone(ctx context.Context, tenantID, zoneID string) error {
	const query = `DELETE FROM zones WHERE tenant_id = $1 AND id = $2`
	if _, err := r.q.ExecContext(ctx, query, tenantID, zoneID); err != nil {
		return fmt.Errorf("delete zone %s: %w", zoneID, err)
	}
	return nil
}

// UnassignZone reverts terminals of zoneID to the tenant default.
func (r *ZoneRepository) UnassignZone(ctx context.Context, tenantID, zoneID string) error {
	const query = `
		UPDATE terminals
		SET zone_id = NULL, updated_at = NOW()
		WHERE tenant_id = $1 AND zone_id = $2
	`
	if _, err := r.q.ExecContext(ctx, query, tenantID, zoneID); err != nil {
		return fmt.Errorf("unassign zone %s: %w", zoneID, err)
	}
	return nil
}
