package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/zones"
)

// ListZones returns the tenant's zones, default first. A tenant without zones gets the
// built-in fallback zone.
func (c *Controller) ListZones(ctx context.Context, tenantID string) ([]models.Zone, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}

	var list []models.Zone
	err := c.view(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		var err error
		list, err = c.zones.List(ctx, tenantID, tx.Zones)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		list = []models.Zone{models.FallbackZone(tenantID)}
	}
	return list, nil
}

// SaveZone creates or updates a zone. Marking it default clears the flag on the
// previous default.
func (c *Controller) SaveZone(ctx context.Context, tenantID string, zone models.Zone) (*models.Zone, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	zone.TenantID = tenantID

	var saved models.Zone
	err := c.mutate(ctx, tenantID, false, func(ctx context.Context, tx Tx) error {
		existing, err := tx.Zones(ctx, tenantID)
		if err != nil {
			return err
		}
		writes, err := zones.PlanSave(existing, zone)
		if err != nil {
			return err
		}
		for i := range writes {
			if err := tx.SaveZone(ctx, &writes[i]); err != nil {
				return err
			}
		}
		saved = writes[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.zones.Invalidate(tenantID)

	c.logger.Info("zone saved",
		zap.String("tenant_id", tenantID),
		zap.String("zone_id", saved.ID),
		zap.Bool("default", saved.IsDefault),
	)
	return &saved, nil
}

// DeleteZone removes a non-default zone. Terminals assigned to it fall back to the
// default zone.
func (c *Controller) DeleteZone(ctx context.Context, tenantID, zoneID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperr.Validation("tenant id is required")
	}
	if strings.TrimSpace(zoneID) == "" {
		return apperr.Validation("zone id is required")
	}

	err := c.mutate(ctx, tenantID, true, func(ctx context.Context, tx Tx) error {
		existing, err := tx.Zones(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := zones.CheckDelete(existing, zoneID); err != nil {
			return err
		}
		if err := tx.UnassignZone(ctx, tenantID, zoneID); err != nil {
			return err
		}
		return tx.DeleteZone(ctx, tenantID, zoneID)
	})
	if err != nil {
		return err
	}
	c.zones.Invalidate(tenantID)

	c.logger.Info("zone deleted", zap.String("tenant_id", tenantID), zap.String("zone_id", zoneID))
	return nil
}
