package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/pricing"
	"lancenter/backend/services/terminals-service/internal/zones"
)

// MaxTerminals bounds ProvisionTerminals.
const MaxTerminals = 500

// AddTimeInput extends an active session.
type AddTimeInput struct {
	Key     models.TerminalKey
	Minutes int
	Price   *decimal.Decimal
}

// ConvertInput switches the mode of an active session. Minutes is required when
// converting to fixed.
type ConvertInput struct {
	Key     models.TerminalKey
	Mode    models.SessionMode
	Minutes int
	Price   *decimal.Decimal
}

// ChargeInput bills an extra item on an active session.
type ChargeInput struct {
	Key         models.TerminalKey
	Description string
	Price       decimal.Decimal
}

// MoveInput relocates the active session of From onto To.
type MoveInput struct {
	TenantID string
	From     string
	To       string
}

// AddTime extends the active session on key. Fixed sessions get a later end time; open
// sessions only accrue the given price.
func (c *Controller) AddTime(ctx context.Context, in AddTimeInput) (*models.Session, error) {
	if err := validateKey(in.Key); err != nil {
		return nil, err
	}
	if err := validateMinutes(in.Minutes); err != nil {
		return nil, err
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}

	var session *models.Session
	err := c.mutate(ctx, in.Key.TenantID, true, func(ctx context.Context, tx Tx) error {
		terminal, active, err := c.requireActive(ctx, tx, in.Key)
		if err != nil {
			return err
		}

		price := decimal.Zero
		if in.Price != nil {
			price = *in.Price
		}
		if active.Mode == models.ModeFixed {
			if in.Price == nil {
				if price, err = c.extensionPrice(ctx, tx, *terminal, active, in.Minutes); err != nil {
					return err
				}
			}
			end := active.EndTime.Add(time.Duration(in.Minutes) * time.Minute)
			active.EndTime = &end
		}

		active.Price = active.Price.Add(price)
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		session = active
		return c.appendEvent(ctx, tx, active, models.EventAdd, fmt.Sprintf("Added %d min", in.Minutes), intPtr(in.Minutes), price)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("time added",
		zap.String("tenant_id", in.Key.TenantID),
		zap.String("terminal_id", in.Key.TerminalID),
		zap.String("session_id", session.ID),
		zap.Int("minutes", in.Minutes),
	)
	return session, nil
}

func (c *Controller) extensionPrice(ctx context.Context, tx Tx, terminal models.Terminal, session *models.Session, minutes int) (decimal.Decimal, error) {
	zone, err := c.zones.For(ctx, terminal, tx.Zones)
	if err != nil {
		return decimal.Zero, err
	}
	if c.policy == PolicyCumulative {
		return pricing.Quote(minutes, zone), nil
	}

	current, err := c.timePrice(ctx, tx, session)
	if err != nil {
		return decimal.Zero, err
	}
	diff := pricing.Quote(session.BookedMinutes()+minutes, zone).Sub(current)
	if diff.IsNegative() {
		return decimal.Zero, nil
	}
	return diff, nil
}

// ConvertMode switches the active session on key between fixed and open. The time
// price is replaced; charges are kept.
func (c *Controller) ConvertMode(ctx context.Context, in ConvertInput) (*models.Session, error) {
	if err := validateKey(in.Key); err != nil {
		return nil, err
	}
	if !in.Mode.Valid() {
		return nil, apperr.Validation("unknown session mode %q", in.Mode)
	}
	if in.Mode == models.ModeFixed {
		if err := validateMinutes(in.Minutes); err != nil {
			return nil, err
		}
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}

	var session *models.Session
	err := c.mutate(ctx, in.Key.TenantID, true, func(ctx context.Context, tx Tx) error {
		terminal, active, err := c.requireActive(ctx, tx, in.Key)
		if err != nil {
			return err
		}
		if active.Mode == models.ModeOpen && in.Mode == models.ModeOpen {
			return apperr.Precondition("session on %s is already open", terminal.Name)
		}

		current, err := c.timePrice(ctx, tx, active)
		if err != nil {
			return err
		}

		var (
			description string
			minutes     *int
			target      = decimal.Zero
		)
		switch in.Mode {
		case models.ModeFixed:
			if target, err = c.priceOrQuote(ctx, tx, *terminal, in.Price, in.Minutes); err != nil {
				return err
			}
			end := active.StartTime.Add(time.Duration(in.Minutes) * time.Minute)
			active.EndTime = &end
			minutes = intPtr(in.Minutes)
			description = fmt.Sprintf("Updated to %d min", in.Minutes)
		case models.ModeOpen:
			active.EndTime = nil
			description = "Switched to open time"
		}

		delta := target.Sub(current)
		active.Mode = in.Mode
		active.Price = active.Price.Add(delta)
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		session = active
		return c.appendEvent(ctx, tx, active, models.EventUpdate, description, minutes, delta)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session updated",
		zap.String("tenant_id", in.Key.TenantID),
		zap.String("terminal_id", in.Key.TerminalID),
		zap.String("session_id", session.ID),
		zap.String("mode", string(session.Mode)),
	)
	return session, nil
}

// AddCharge bills an extra item on the active session of key.
func (c *Controller) AddCharge(ctx context.Context, in ChargeInput) (*models.Charge, error) {
	if err := validateKey(in.Key); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperr.Validation("charge name is required")
	}
	if err := validateAmount(in.Price); err != nil {
		return nil, err
	}

	var charge *models.Charge
	err := c.mutate(ctx, in.Key.TenantID, true, func(ctx context.Context, tx Tx) error {
		_, active, err := c.requireActive(ctx, tx, in.Key)
		if err != nil {
			return err
		}

		charge = &models.Charge{
			ID:          uuid.NewString(),
			SessionID:   active.ID,
			TerminalKey: active.TerminalKey,
			Description: description,
			Price:       in.Price,
			CreatedAt:   c.now(),
		}
		if err := tx.InsertCharge(ctx, charge); err != nil {
			return err
		}
		active.Price = active.Price.Add(in.Price)
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		return c.appendEvent(ctx, tx, active, models.EventExtra, "Extra: "+description, nil, in.Price)
	})
	if err != nil {
		return nil, err
	}
	return charge, nil
}

// TogglePaid flips the paid flag of the active session of key.
func (c *Controller) TogglePaid(ctx context.Context, key models.TerminalKey) (*models.Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var session *models.Session
	err := c.mutate(ctx, key.TenantID, true, func(ctx context.Context, tx Tx) error {
		_, active, err := c.requireActive(ctx, tx, key)
		if err != nil {
			return err
		}
		active.Paid = !active.Paid
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		session = active

		description := "Marked as unpaid"
		if active.Paid {
			description = "Marked as paid"
		}
		return c.appendEvent(ctx, tx, active, models.EventPaid, description, nil, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RenameCustomer changes the customer name of the active session of key.
func (c *Controller) RenameCustomer(ctx context.Context, key models.TerminalKey, name string) (*models.Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		return nil, apperr.Validation("customer name is required")
	}

	var session *models.Session
	err := c.mutate(ctx, key.TenantID, true, func(ctx context.Context, tx Tx) error {
		_, active, err := c.requireActive(ctx, tx, key)
		if err != nil {
			return err
		}
		active.CustomerName = name
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		session = active
		return c.appendEvent(ctx, tx, active, models.EventRename, "Renamed to "+name, nil, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Move relocates the active session of in.From onto the available terminal in.To,
// keeping its price, charges and history.
func (c *Controller) Move(ctx context.Context, in MoveInput) (*models.Session, error) {
	from := models.TerminalKey{TenantID: in.TenantID, TerminalID: in.From}
	to := models.TerminalKey{TenantID: in.TenantID, TerminalID: in.To}
	if err := validateKey(from); err != nil {
		return nil, err
	}
	if err := validateKey(to); err != nil {
		return nil, err
	}
	if in.From == in.To {
		return nil, apperr.Validation("source and target terminal are the same")
	}

	var session *models.Session
	err := c.mutate(ctx, in.TenantID, true, func(ctx context.Context, tx Tx) error {
		source, active, err := c.requireActive(ctx, tx, from)
		if err != nil {
			return err
		}
		target, err := c.requireAvailable(ctx, tx, to)
		if err != nil {
			return err
		}

		active.TerminalKey = to
		if err := tx.UpdateSession(ctx, active); err != nil {
			return err
		}
		if err := c.setStatus(ctx, tx, source, models.TerminalAvailable); err != nil {
			return err
		}
		if err := c.setStatus(ctx, tx, target, models.TerminalOccupied); err != nil {
			return err
		}
		session = active
		return c.appendEvent(ctx, tx, active, models.EventMove, fmt.Sprintf("Moved from %s to %s", source.Name, target.Name), nil, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session moved",
		zap.String("tenant_id", in.TenantID),
		zap.String("from", in.From),
		zap.String("to", in.To),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

// SetMaintenance toggles maintenance on key. Entering maintenance stops the active
// session first.
func (c *Controller) SetMaintenance(ctx context.Context, key models.TerminalKey) (*models.Terminal, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var terminal *models.Terminal
	err := c.mutate(ctx, key.TenantID, true, func(ctx context.Context, tx Tx) error {
		current, err := c.loadTerminal(ctx, tx, key)
		if err != nil {
			return err
		}
		terminal = current

		if current.Status == models.TerminalMaintenance {
			return c.setStatus(ctx, tx, current, models.TerminalAvailable)
		}

		active, err := tx.ActiveSession(ctx, key)
		if err != nil {
			return err
		}
		if active != nil {
			if err := c.stopSession(ctx, tx, *current, active); err != nil {
				return err
			}
		}
		return c.setStatus(ctx, tx, current, models.TerminalMaintenance)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("maintenance toggled",
		zap.String("tenant_id", key.TenantID),
		zap.String("terminal_id", key.TerminalID),
		zap.String("status", string(terminal.Status)),
	)
	return terminal, nil
}

// ProvisionTerminals makes sure terminals "1".."count" exist for tenantID. Existing
// terminals are left untouched.
func (c *Controller) ProvisionTerminals(ctx context.Context, tenantID string, count int) ([]models.Terminal, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	if count <= 0 || count > MaxTerminals {
		return nil, apperr.Validation("count must be between 1 and %d", MaxTerminals)
	}

	var terminals []models.Terminal
	created := 0
	err := c.mutate(ctx, tenantID, true, func(ctx context.Context, tx Tx) error {
		existing, err := tx.Terminals(ctx, tenantID)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(existing))
		for _, t := range existing {
			known[t.TerminalID] = struct{}{}
		}

		for i := 1; i <= count; i++ {
			id := strconv.Itoa(i)
			if _, ok := known[id]; ok {
				continue
			}
			terminal := models.Terminal{
				TerminalKey: models.TerminalKey{TenantID: tenantID, TerminalID: id},
				Name:        models.TerminalName(i),
				Status:      models.TerminalAvailable,
			}
			if err := tx.SaveTerminal(ctx, &terminal); err != nil {
				return err
			}
			created++
		}
		if created == 0 {
			terminals = existing
			return errUnchanged
		}

		terminals, err = tx.Terminals(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("terminals provisioned", zap.String("tenant_id", tenantID), zap.Int("created", created))
	return terminals, nil
}

// AssignZone sets the price zone of key. An empty zoneID reverts to the default zone.
func (c *Controller) AssignZone(ctx context.Context, key models.TerminalKey, zoneID string) (*models.Terminal, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	zoneID = strings.TrimSpace(zoneID)

	var terminal *models.Terminal
	err := c.mutate(ctx, key.TenantID, true, func(ctx context.Context, tx Tx) error {
		current, err := c.loadTerminal(ctx, tx, key)
		if err != nil {
			return err
		}
		if zoneID != "" {
			list, err := c.zones.List(ctx, key.TenantID, tx.Zones)
			if err != nil {
				return err
			}
			if _, ok := zones.Find(list, zoneID); !ok {
				return apperr.NotFound("zone %s not found", zoneID)
			}
		}
		current.ZoneID = zoneID
		terminal = current
		return tx.SaveTerminal(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return terminal, nil
}
