package handlers

import (
	"context"

	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

func terminalKey(client wire.Client, id string) models.TerminalKey {
	return models.TerminalKey{TenantID: client.TenantID, TerminalID: id}
}

// NewStartSessionHandler starts a fixed session.
func NewStartSessionHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.StartSession) (interface{}, error) {
		return ctrl.StartFixed(ctx, service.StartFixedInput{
			Key:          terminalKey(client, cmd.ID),
			Minutes:      cmd.DurationMinutes,
			CustomerName: cmd.CustomerName,
			Price:        cmd.Price,
			StartTime:    cmd.StartTime,
		})
	})
}

// NewStartOpenSessionHandler starts an open session.
func NewStartOpenSessionHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.StartOpenSession) (interface{}, error) {
		return ctrl.StartOpen(ctx, service.StartOpenInput{
			Key:          terminalKey(client, cmd.ID),
			CustomerName: cmd.CustomerName,
			StartTime:    cmd.StartTime,
		})
	})
}

// StopResult reports whether a session was stopped.
type StopResult struct {
	Stopped bool            `json:"stopped"`
	Session *models.Session `json:"session,omitempty"`
}

// NewStopSessionHandler stops the active session; stopping an idle terminal succeeds.
func NewStopSessionHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.StopSession) (interface{}, error) {
		session, err := ctrl.Stop(ctx, terminalKey(client, cmd.ID))
		if err != nil {
			return nil, err
		}
		return StopResult{Stopped: session != nil, Session: session}, nil
	})
}

// NewAddTimeHandler extends a session.
func NewAddTimeHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.AddTime) (interface{}, error) {
		return ctrl.AddTime(ctx, service.AddTimeInput{
			Key:     terminalKey(client, cmd.ID),
			Minutes: cmd.Minutes,
			Price:   cmd.Price,
		})
	})
}

// NewUpdateSessionHandler converts a session between fixed and open.
func NewUpdateSessionHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.UpdateSession) (interface{}, error) {
		return ctrl.ConvertMode(ctx, service.ConvertInput{
			Key:     terminalKey(client, cmd.ID),
			Mode:    models.SessionMode(cmd.Mode),
			Minutes: cmd.DurationMinutes,
			Price:   cmd.Price,
		})
	})
}

// NewAddExtraHandler bills an extra item.
func NewAddExtraHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.AddExtra) (interface{}, error) {
		return ctrl.AddCharge(ctx, service.ChargeInput{
			Key:         terminalKey(client, cmd.ID),
			Description: cmd.Name,
			Price:       cmd.Price,
		})
	})
}

// NewTogglePaidHandler flips the paid flag.
func NewTogglePaidHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.TogglePaid) (interface{}, error) {
		return ctrl.TogglePaid(ctx, terminalKey(client, cmd.ID))
	})
}

// NewToggleMaintenanceHandler flips maintenance.
func NewToggleMaintenanceHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.ToggleMaintenance) (interface{}, error) {
		return ctrl.SetMaintenance(ctx, terminalKey(client, cmd.ID))
	})
}

// NewMoveSessionHandler moves a session between terminals.
func NewMoveSessionHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.MoveSession) (interface{}, error) {
		return ctrl.Move(ctx, service.MoveInput{TenantID: client.TenantID, From: cmd.FromID, To: cmd.ToID})
	})
}

// NewRenameCustomerHandler renames the session customer.
func NewRenameCustomerHandler(ctrl *service.Controller) wire.HandlerFunc {
	return wire.Handle(func(ctx context.Context, client wire.Client, cmd *protocol.RenameCustomer) (interface{}, error) {
		return ctrl.RenameCustomer(ctx, terminalKey(client, cmd.ID), cmd.CustomerName)
	})
}
