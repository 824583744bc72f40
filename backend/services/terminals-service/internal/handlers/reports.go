package handlers

import (
	"context"
	"time"

	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

// NewDailyRevenueHandler totals the sessions started on one day.
func NewDailyRevenueHandler(ctrl *service.Controller, now func() time.Time) wire.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.GetDailyRevenue) (interface{}, error) {
		return ctrl.DailyRevenue(ctx, client.TenantID, cmd.Day(now()))
	})
}

// NewHistoryHandler lists sessions started in a window.
func NewHistoryHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.GetHistory) (interface{}, error) {
		return ctrl.History(ctx, service.HistoryQuery{
			TenantID:   client.TenantID,
			From:       cmd.From,
			To:         cmd.To,
			TerminalID: cmd.ComputerID,
		})
	})
}

// NewReceiptHandler returns one session's receipt.
func NewReceiptHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.GetReceipt) (interface{}, error) {
		return ctrl.Receipt(ctx, client.TenantID, cmd.SessionID)
	})
}
