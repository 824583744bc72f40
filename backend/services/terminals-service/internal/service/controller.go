package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/pricing"
	"lancenter/backend/services/terminals-service/internal/zones"
)

// AddTimePolicy decides how an extension is priced when the caller gives no price.
type AddTimePolicy string

// Add-time policies.
const (
	// PolicyCumulative charges the flat price of the added block.
	PolicyCumulative AddTimePolicy = "cumulative"
	// PolicyRecalculate charges the difference between the price of the new total
	// duration and the time price already accrued.
	PolicyRecalculate AddTimePolicy = "recalculate"
)

// Valid reports whether p is a known policy.
func (p AddTimePolicy) Valid() bool {
	return p == PolicyCumulative || p == PolicyRecalculate
}

const defaultOperationTimeout = 5 * time.Second

// errUnchanged aborts a unit of work that has nothing to apply.
var errUnchanged = errors.New("service: nothing to change")

// Options tunes the controller.
type Options struct {
	Policy           AddTimePolicy
	OperationTimeout time.Duration
	Clock            func() time.Time
}

// Controller is the only writer of terminal and session state. Every operation runs as
// one serialized unit of work per tenant and appends exactly one audit event.
type Controller struct {
	store    Store
	zones    *zones.Service
	notifier Notifier
	policy   AddTimePolicy
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
	locks    tenantLocks
}

// NewController builds the lifecycle controller.
func NewController(store Store, zoneSvc *zones.Service, notifier Notifier, opts Options, logger *zap.Logger) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if zoneSvc == nil {
		zoneSvc = zones.NewService(0, logger)
	}
	if !opts.Policy.Valid() {
		opts.Policy = PolicyCumulative
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Controller{
		store:    store,
		zones:    zoneSvc,
		notifier: notifier,
		policy:   opts.Policy,
		timeout:  opts.OperationTimeout,
		now:      func() time.Time { return opts.Clock().UTC() },
		logger:   logger,
		locks:    tenantLocks{locks: make(map[string]*sync.Mutex)},
	}
}

// StartFixedInput starts a prepaid rental.
type StartFixedInput struct {
	Key          models.TerminalKey
	Minutes      int
	CustomerName string
	// Price nil quotes the block from the terminal's zone.
	Price     *decimal.Decimal
	StartTime *time.Time
}

// StartOpenInput starts an open-ended rental.
type StartOpenInput struct {
	Key          models.TerminalKey
	CustomerName string
	StartTime    *time.Time
}

// StartFixed opens a fixed-duration session on an available terminal.
func (c *Controller) StartFixed(ctx context.Context, in StartFixedInput) (*models.Session, error) {
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
		terminal, err := c.requireAvailable(ctx, tx, in.Key)
		if err != nil {
			return err
		}

		price, err := c.priceOrQuote(ctx, tx, *terminal, in.Price, in.Minutes)
		if err != nil {
			return err
		}

		start := c.startTime(in.StartTime)
		end := start.Add(time.Duration(in.Minutes) * time.Minute)
		session = &models.Session{
			ID:           uuid.NewString(),
			TerminalKey:  in.Key,
			CustomerName: customerName(in.CustomerName),
			Mode:         models.ModeFixed,
			StartTime:    start,
			EndTime:      &end,
			Price:        price,
			Active:       true,
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}
		if err := c.appendEvent(ctx, tx, session, models.EventStart, fmt.Sprintf("Start (%d min)", in.Minutes), intPtr(in.Minutes), price); err != nil {
			return err
		}
		return c.setStatus(ctx, tx, terminal, models.TerminalOccupied)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("fixed session started",
		zap.String("tenant_id", in.Key.TenantID),
		zap.String("terminal_id", in.Key.TerminalID),
		zap.String("session_id", session.ID),
		zap.Int("minutes", in.Minutes),
		zap.String("price", session.Price.StringFixed(2)),
	)
	return session, nil
}

// StartOpen opens an open-ended session on an available terminal.
func (c *Controller) StartOpen(ctx context.Context, in StartOpenInput) (*models.Session, error) {
	if err := validateKey(in.Key); err != nil {
		return nil, err
	}

	var session *models.Session
	err := c.mutate(ctx, in.Key.TenantID, true, func(ctx context.Context, tx Tx) error {
		terminal, err := c.requireAvailable(ctx, tx, in.Key)
		if err != nil {
			return err
		}

		session = &models.Session{
			ID:           uuid.NewString(),
			TerminalKey:  in.Key,
			CustomerName: customerName(in.CustomerName),
			Mode:         models.ModeOpen,
			StartTime:    c.startTime(in.StartTime),
			Price:        decimal.Zero,
			Active:       true,
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}
		if err := c.appendEvent(ctx, tx, session, models.EventOpen, "Open start", nil, decimal.Zero); err != nil {
			return err
		}
		return c.setStatus(ctx, tx, terminal, models.TerminalOccupied)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("open session started",
		zap.String("tenant_id", in.Key.TenantID),
		zap.String("terminal_id", in.Key.TerminalID),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

// Stop ends the active session of key. It is idempotent: a terminal without an active
// session is left untouched and (nil, nil) is returned.
func (c *Controller) Stop(ctx context.Context, key models.TerminalKey) (*models.Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var session *models.Session
	err := c.mutate(ctx, key.TenantID, true, func(ctx context.Context, tx Tx) error {
		terminal, err := c.loadTerminal(ctx, tx, key)
		if err != nil {
			return err
		}
		active, err := tx.ActiveSession(ctx, key)
		if err != nil {
			return err
		}
		if active == nil {
			return errUnchanged
		}
		if err := c.stopSession(ctx, tx, *terminal, active); err != nil {
			return err
		}
		session = active
		return c.setStatus(ctx, tx, terminal, models.TerminalAvailable)
	})
	if err != nil || session == nil {
		return nil, err
	}

	c.logger.Info("session stopped",
		zap.String("tenant_id", key.TenantID),
		zap.String("terminal_id", key.TerminalID),
		zap.String("session_id", session.ID),
		zap.String("price", session.Price.StringFixed(2)),
	)
	return session, nil
}

// stopSession closes session, billing open sessions for the elapsed time.
func (c *Controller) stopSession(ctx context.Context, tx Tx, terminal models.Terminal, session *models.Session) error {
	now := c.now()
	delta := decimal.Zero
	description := "Stopped"
	var minutes *int

	if session.Mode == models.ModeOpen {
		zone, err := c.zones.For(ctx, terminal, tx.Zones)
		if err != nil {
			return err
		}
		current, err := c.timePrice(ctx, tx, session)
		if err != nil {
			return err
		}
		elapsed := session.ElapsedMinutes(now)
		if billed := pricing.Elapsed(elapsed, zone); billed.GreaterThan(current) {
			delta = billed.Sub(current)
		}
		minutes = intPtr(elapsed)
		description = fmt.Sprintf("Stopped after %d min", elapsed)
	}

	session.Price = session.Price.Add(delta)
	session.Active = false
	session.ActualEnd = &now
	if err := tx.UpdateSession(ctx, session); err != nil {
		return err
	}
	return c.appendEvent(ctx, tx, session, models.EventStop, description, minutes, delta)
}

// mutate runs fn as one serialized unit of work for tenantID and notifies subscribers
// after a successful commit.
func (c *Controller) mutate(ctx context.Context, tenantID string, notify bool, fn func(context.Context, Tx) error) error {
	unlock := c.locks.lock(tenantID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.store.Update(ctx, tenantID, func(tx Tx) error { return fn(ctx, tx) })
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		appErr := apperr.Ensure(err)
		if appErr.Kind == apperr.KindStorage {
			c.logger.Error("unit of work failed", zap.String("tenant_id", tenantID), zap.Error(err))
		} else {
			c.logger.Warn("operation rejected", zap.String("tenant_id", tenantID), zap.String("kind", string(appErr.Kind)), zap.String("reason", appErr.Message))
		}
		return appErr
	}

	if notify {
		c.notifier.TerminalsChanged(tenantID)
	}
	return nil
}

func (c *Controller) view(ctx context.Context, tenantID string, fn func(context.Context, Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.View(ctx, tenantID, func(tx Tx) error { return fn(ctx, tx) }); err != nil {
		return apperr.Ensure(err)
	}
	return nil
}

func (c *Controller) loadTerminal(ctx context.Context, tx Tx, key models.TerminalKey) (*models.Terminal, error) {
	terminal, err := tx.Terminal(ctx, key)
	if err != nil {
		return nil, err
	}
	if terminal == nil {
		return nil, apperr.NotFound("terminal %s not found", key.TerminalID)
	}
	return terminal, nil
}

func (c *Controller) requireAvailable(ctx context.Context, tx Tx, key models.TerminalKey) (*models.Terminal, error) {
	terminal, err := c.loadTerminal(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	switch terminal.Status {
	case models.TerminalOccupied:
		return nil, apperr.Precondition("terminal %s is already occupied", terminal.Name)
	case models.TerminalMaintenance:
		return nil, apperr.Precondition("terminal %s is under maintenance", terminal.Name)
	}

	active, err := tx.ActiveSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperr.Precondition("terminal %s already has an active session", terminal.Name)
	}
	return terminal, nil
}

func (c *Controller) requireActive(ctx context.Context, tx Tx, key models.TerminalKey) (*models.Terminal, *models.Session, error) {
	terminal, err := c.loadTerminal(ctx, tx, key)
	if err != nil {
		return nil, nil, err
	}
	session, err := tx.ActiveSession(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, apperr.Precondition("terminal %s has no active session", terminal.Name)
	}
	return terminal, session, nil
}

func (c *Controller) setStatus(ctx context.Context, tx Tx, terminal *models.Terminal, status models.TerminalStatus) error {
	terminal.Status = status
	return tx.SaveTerminal(ctx, terminal)
}

func (c *Controller) appendEvent(ctx context.Context, tx Tx, session *models.Session, typ models.EventType, description string, minutes *int, price decimal.Decimal) error {
	return tx.InsertEvent(ctx, &models.SessionEvent{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		TerminalKey: session.TerminalKey,
		Type:        typ,
		Description: description,
		Minutes:     minutes,
		Price:       price,
		CreatedAt:   c.now(),
	})
}

// timePrice is the accrued price minus ad-hoc charges.
func (c *Controller) timePrice(ctx context.Context, tx Tx, session *models.Session) (decimal.Decimal, error) {
	charges, err := tx.Charges(ctx, session.TenantID, session.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return session.Price.Sub(models.ChargesTotal(charges)), nil
}

func (c *Controller) priceOrQuote(ctx context.Context, tx Tx, terminal models.Terminal, price *decimal.Decimal, minutes int) (decimal.Decimal, error) {
	if price != nil {
		return *price, nil
	}
	zone, err := c.zones.For(ctx, terminal, tx.Zones)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.Quote(minutes, zone), nil
}

func (c *Controller) startTime(requested *time.Time) time.Time {
	if requested == nil || requested.IsZero() {
		return c.now()
	}
	return requested.UTC()
}

func validateKey(key models.TerminalKey) error {
	if err := key.Validate(); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func validateMinutes(minutes int) error {
	if minutes <= 0 || minutes > models.MaxMinutes {
		return apperr.Validation("minutes must be between 1 and %d", models.MaxMinutes)
	}
	return nil
}

func validatePrice(price *decimal.Decimal) error {
	if price == nil {
		return nil
	}
	return validateAmount(*price)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if !models.IsCents(amount) {
		return apperr.Validation("price must have at most %d decimal places", models.MoneyPlaces)
	}
	return nil
}

func customerName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return models.DefaultCustomerName
}

func intPtr(v int) *int {
	return &v
}

type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *tenantLocks) lock(tenantID string) func() {
	l.mu.Lock()
	m, ok := l.locks[tenantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tenantID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
