package handlers

import (
	"context"

	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

// NewGetZonesHandler lists zones.
func NewGetZonesHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, _ *protocol.GetZones) (interface{}, error) {
		return ctrl.ListZones(ctx, client.TenantID)
	})
}

// NewSaveZoneHandler creates or updates a zone.
func NewSaveZoneHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.SaveZone) (interface{}, error) {
		return ctrl.SaveZone(ctx, client.TenantID, cmd.Zone())
	})
}

// NewDeleteZoneHandler removes a zone.
func NewDeleteZoneHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.DeleteZone) (interface{}, error) {
		if err := ctrl.DeleteZone(ctx, client.TenantID, cmd.ZoneID); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": cmd.ZoneID}, nil
	})
}
