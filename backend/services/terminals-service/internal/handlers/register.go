// Package handlers binds every inbound command and query to the lifecycle controller.
package handlers

import (
	"time"

	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

// Register attaches all handlers to router.
func Register(router *wire.Router, ctrl *service.Controller, now func() time.Time) {
	router.Register(protocol.CommandStartSession, NewStartSessionHandler(ctrl))
	router.Register(protocol.CommandStartOpenSession, NewStartOpenSessionHandler(ctrl))
	router.Register(protocol.CommandStopSession, NewStopSessionHandler(ctrl))
	router.Register(protocol.CommandAddTime, NewAddTimeHandler(ctrl))
	router.Register(protocol.CommandUpdateSession, NewUpdateSessionHandler(ctrl))
	router.Register(protocol.CommandAddExtra, NewAddExtraHandler(ctrl))
	router.Register(protocol.CommandTogglePaid, NewTogglePaidHandler(ctrl))
	router.Register(protocol.CommandToggleMaintenance, NewToggleMaintenanceHandler(ctrl))
	router.Register(protocol.CommandMoveSession, NewMoveSessionHandler(ctrl))
	router.Register(protocol.CommandRenameCustomer, NewRenameCustomerHandler(ctrl))
	router.Register(protocol.CommandInitializeComputers, NewInitializeComputersHandler(ctrl))
	router.Register(protocol.CommandAssignZone, NewAssignZoneHandler(ctrl))
	router.Register(protocol.CommandSaveZone, NewSaveZoneHandler(ctrl))
	router.Register(protocol.CommandDeleteZone, NewDeleteZoneHandler(ctrl))

	router.Register(protocol.QueryZones, NewGetZonesHandler(ctrl))
	router.Register(protocol.QueryComputers, NewGetComputersHandler(ctrl))
	router.Register(protocol.QueryDailyRevenue, NewDailyRevenueHandler(ctrl, now))
	router.Register(protocol.QueryHistory, NewHistoryHandler(ctrl))
	router.Register(protocol.QueryReceipt, NewReceiptHandler(ctrl))
}
