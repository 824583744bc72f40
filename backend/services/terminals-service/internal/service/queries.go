package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
)

// HistoryQuery selects sessions whose start time lies in [From, To).
type HistoryQuery struct {
	TenantID   string
	From       time.Time
	To         time.Time
	TerminalID string
}

// Terminals returns the tenant's terminal list with the active session, charges and
// history of each occupied terminal.
func (c *Controller) Terminals(ctx context.Context, tenantID string) ([]models.TerminalState, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}

	var states []models.TerminalState
	err := c.view(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		terminals, err := tx.Terminals(ctx, tenantID)
		if err != nil {
			return err
		}

		states = make([]models.TerminalState, 0, len(terminals))
		for _, terminal := range terminals {
			state := models.TerminalState{Terminal: terminal}
			session, err := tx.ActiveSession(ctx, terminal.TerminalKey)
			if err != nil {
				return err
			}
			if session != nil {
				state.Session = session
				if state.Charges, err = tx.Charges(ctx, tenantID, session.ID); err != nil {
					return err
				}
				if state.History, err = tx.Events(ctx, tenantID, session.ID); err != nil {
					return err
				}
			}
			states = append(states, state)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// History returns the sessions started inside the query window, newest first.
func (c *Controller) History(ctx context.Context, q HistoryQuery) ([]models.SessionRecord, error) {
	if strings.TrimSpace(q.TenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	if q.From.IsZero() || q.To.IsZero() || !q.From.Before(q.To) {
		return nil, apperr.Validation("history window must have from before to")
	}

	var records []models.SessionRecord
	err := c.view(ctx, q.TenantID, func(ctx context.Context, tx Tx) error {
		var err error
		records, err = c.records(ctx, tx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DailyRevenue totals the accrued price of sessions started on the calendar day of day,
// in day's location.
func (c *Controller) DailyRevenue(ctx context.Context, tenantID string, day time.Time) (*models.Revenue, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	if day.IsZero() {
		day = c.now()
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	revenue := &models.Revenue{From: from, To: to, Total: decimal.Zero}
	err := c.view(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		sessions, err := tx.SessionsStarted(ctx, tenantID, from.UTC(), to.UTC(), "")
		if err != nil {
			return err
		}
		for _, s := range sessions {
			revenue.Total = revenue.Total.Add(s.Price)
		}
		revenue.Sessions = len(sessions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revenue, nil
}

// Receipt returns the billing view of one session.
func (c *Controller) Receipt(ctx context.Context, tenantID, sessionID string) (*models.Receipt, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation("session id is required")
	}

	var receipt *models.Receipt
	err := c.view(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		session, err := tx.Session(ctx, tenantID, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperr.NotFound("session %s not found", sessionID)
		}
		receipt = &models.Receipt{Session: *session, Total: session.Price}
		if receipt.Charges, err = tx.Charges(ctx, tenantID, sessionID); err != nil {
			return err
		}
		receipt.Events, err = tx.Events(ctx, tenantID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Controller) records(ctx context.Context, tx Tx, q HistoryQuery) ([]models.SessionRecord, error) {
	sessions, err := tx.SessionsStarted(ctx, q.TenantID, q.From.UTC(), q.To.UTC(), q.TerminalID)
	if err != nil {
		return nil, err
	}

	records := make([]models.SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		record := models.SessionRecord{Session: s}
		if record.Charges, err = tx.Charges(ctx, q.TenantID, s.ID); err != nil {
			return nil, err
		}
		if record.Events, err = tx.Events(ctx, q.TenantID, s.ID); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
