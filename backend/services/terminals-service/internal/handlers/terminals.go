package handlers

import (
	"context"

	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

// NewInitializeComputersHandler provisions terminals.
func NewInitializeComputersHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.InitializeComputers) (interface{}, error) {
		return ctrl.ProvisionTerminals(ctx, client.TenantID, cmd.Count)
	})
}

// NewAssignZoneHandler assigns a price zone to a terminal.
func NewAssignZoneHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.AssignZone) (interface{}, error) {
		return ctrl.AssignZone(ctx, terminalKey(client, cmd.ID), cmd.ZoneID)
	})
}

// NewGetComputersHandler returns the terminal list.
func NewGetComputersHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, _ *protocol.GetComputers) (interface{}, error) {
		return ctrl.Terminals(ctx, client.TenantID)
	})
}
