package service

import (
	"context"
	"time"

	"lancenter/backend/services/terminals-service/internal/models"
)

// Tx is the view of one tenant's data inside a single atomic unit of work.
// Lookups return (nil, nil) when the row does not exist.
type Tx interface {
	Terminal(ctx context.Context, key models.TerminalKey) (*models.Terminal, error)
	Terminals(ctx context.Context, tenantID string) ([]models.Terminal, error)
	SaveTerminal(ctx context.Context, terminal *models.Terminal) error

	ActiveSession(ctx context.Context, key models.TerminalKey) (*models.Session, error)
	Session(ctx context.Context, tenantID, sessionID string) (*models.Session, error)
	SessionsStarted(ctx context.Context, tenantID string, from, to time.Time, terminalID string) ([]models.Session, error)
	InsertSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error

	Charges(ctx context.Context, tenantID, sessionID string) ([]models.Charge, error)
	InsertCharge(ctx context.Context, charge *models.Charge) error

	Events(ctx context.Context, tenantID, sessionID string) ([]models.SessionEvent, error)
	InsertEvent(ctx context.Context, event *models.SessionEvent) error

	Zones(ctx context.Context, tenantID string) ([]models.Zone, error)
	SaveZone(ctx context.Context, zone *models.Zone) error
	DeleteZone(ctx context.Context, tenantID, zoneID string) error
	UnassignZone(ctx context.Context, tenantID, zoneID string) error
}

// Store runs units of work against a tenant. Update serialises writers of the same
// tenant and commits only when fn returns nil; View runs a read-only snapshot.
type Store interface {
	Update(ctx context.Context, tenantID string, fn func(Tx) error) error
	View(ctx context.Context, tenantID string, fn func(Tx) error) error
}

// Notifier is told after a tenant's terminal list changed.
type Notifier interface {
	TerminalsChanged(tenantID string)
}

type nopNotifier struct{}

func (nopNotifier) TerminalsChanged(string) {}
