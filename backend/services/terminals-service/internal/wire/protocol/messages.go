package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
)

// Frame is an inbound client message.
type Frame struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ResultFrame answers a frame that succeeded.
type ResultFrame struct {
	Type string      `json:"type"`
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

// ErrorBody carries the error code and message.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorFrame answers a frame that failed.
type ErrorFrame struct {
	Type  string    `json:"type"`
	ID    string    `json:"id,omitempty"`
	Error ErrorBody `json:"error"`
}

// UpdateFrame is the terminal list pushed after every change.
type UpdateFrame struct {
	Type string                 `json:"type"`
	Data []models.TerminalState `json:"data"`
}

// Command is one decoded inbound variant.
type Command interface {
	Name() string
	Validate() error
}

// StartSession starts a fixed session.
type StartSession struct {
	ID              string           `json:"id"`
	DurationMinutes int              `json:"durationMinutes"`
	CustomerName    string           `json:"customerName"`
	Price           *decimal.Decimal `json:"price"`
	StartTime       *time.Time       `json:"startTime"`
}

// StartOpenSession starts an open session.
type StartOpenSession struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customerName"`
	StartTime    *time.Time `json:"startTime"`
}

// StopSession stops the active session of a terminal.
type StopSession struct {
	ID string `json:"id"`
}

// AddTime extends a session.
type AddTime struct {
	ID      string           `json:"id"`
	Minutes int              `json:"minutes"`
	Price   *decimal.Decimal `json:"price"`
}

// UpdateSession converts a session between fixed and open.
type UpdateSession struct {
	ID              string           `json:"id"`
	Mode            string           `json:"mode"`
	DurationMinutes int              `json:"durationMinutes"`
	Price           *decimal.Decimal `json:"price"`
}

// AddExtra bills an item.
type AddExtra struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// TogglePaid flips the paid flag.
type TogglePaid struct {
	ID string `json:"id"`
}

// ToggleMaintenance flips maintenance.
type ToggleMaintenance struct {
	ID string `json:"id"`
}

// MoveSession relocates a session.
type MoveSession struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
}

// RenameCustomer renames the session customer.
type RenameCustomer struct {
	ID           string `json:"id"`
	CustomerName string `json:"customerName"`
}

// InitializeComputers provisions terminals.
type InitializeComputers struct {
	Count int `json:"count"`
}

// UnmarshalJSON accepts both {"count": n} and a bare n.
func (c *InitializeComputers) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Count = n
		return nil
	}
	type plain InitializeComputers
	return json.Unmarshal(data, (*plain)(c))
}

// AssignZone assigns a zone to a terminal. An empty ZoneID selects the default zone.
type AssignZone struct {
	ID     string `json:"id"`
	ZoneID string `json:"zoneId"`
}

// SaveZone creates or updates a zone.
type SaveZone struct {
	ZoneID    string             `json:"zoneId"`
	Name      string             `json:"name"`
	Tolerance int                `json:"tolerance"`
	Rules     []models.PriceRule `json:"rules"`
	IsDefault bool               `json:"isDefault"`
}

// DeleteZone removes a zone.
type DeleteZone struct {
	ZoneID string `json:"zoneId"`
}

// GetZones lists zones.
type GetZones struct{}

// GetComputers returns the terminal list.
type GetComputers struct{}

// GetDailyRevenue totals one calendar day. Date is YYYY-MM-DD; Timezone is an IANA name.
type GetDailyRevenue struct {
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
}

// GetHistory lists sessions started in [From, To).
type GetHistory struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	ComputerID string    `json:"computerId"`
}

// GetReceipt returns one session's receipt.
type GetReceipt struct {
	SessionID string `json:"sessionId"`
}

func (StartSession) Name() string        { return CommandStartSession }
func (StartOpenSession) Name() string    { return CommandStartOpenSession }
func (StopSession) Name() string         { return CommandStopSession }
func (AddTime) Name() string             { return CommandAddTime }
func (UpdateSession) Name() string       { return CommandUpdateSession }
func (AddExtra) Name() string            { return CommandAddExtra }
func (TogglePaid) Name() string          { return CommandTogglePaid }
func (ToggleMaintenance) Name() string   { return CommandToggleMaintenance }
func (MoveSession) Name() string         { return CommandMoveSession }
func (RenameCustomer) Name() string      { return CommandRenameCustomer }
func (InitializeComputers) Name() string { return CommandInitializeComputers }
func (AssignZone) Name() string          { return CommandAssignZone }
func (SaveZone) Name() string            { return CommandSaveZone }
func (DeleteZone) Name() string          { return CommandDeleteZone }
func (GetZones) Name() string            { return QueryZones }
func (GetComputers) Name() string        { return QueryComputers }
func (GetDailyRevenue) Name() string     { return QueryDailyRevenue }
func (GetHistory) Name() string          { return QueryHistory }
func (GetReceipt) Name() string          { return QueryReceipt }

func (c StartSession) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	if err := minutesInRange("durationMinutes", c.DurationMinutes); err != nil {
		return err
	}
	return nonNegative(c.Price)
}

func (c StartOpenSession) Validate() error { return requireID(c.ID) }
func (c StopSession) Validate() error      { return requireID(c.ID) }

func (c AddTime) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	if err := minutesInRange("minutes", c.Minutes); err != nil {
		return err
	}
	return nonNegative(c.Price)
}

func (c UpdateSession) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	switch c.Mode {
	case ModeFixed:
		if err := minutesInRange("durationMinutes", c.DurationMinutes); err != nil {
			return err
		}
	case ModeOpen:
	default:
		return apperr.Validation("mode must be %q or %q", ModeFixed, ModeOpen)
	}
	return nonNegative(c.Price)
}

func (c AddExtra) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("name is required")
	}
	return nonNegative(&c.Price)
}

func (c TogglePaid) Validate() error        { return requireID(c.ID) }
func (c ToggleMaintenance) Validate() error { return requireID(c.ID) }

func (c MoveSession) Validate() error {
	if strings.TrimSpace(c.FromID) == "" || strings.TrimSpace(c.ToID) == "" {
		return apperr.Validation("fromId and toId are required")
	}
	return nil
}

func (c RenameCustomer) Validate() error {
	if err := requireID(c.ID); err != nil {
		return err
	}
	if strings.TrimSpace(c.CustomerName) == "" {
		return apperr.Validation("customerName is required")
	}
	return nil
}

func (c InitializeComputers) Validate() error {
	if c.Count <= 0 {
		return apperr.Validation("count must be positive")
	}
	return nil
}

func (c AssignZone) Validate() error { return requireID(c.ID) }

func (c SaveZone) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("name is required")
	}
	if len(c.Rules) == 0 {
		return apperr.Validation("rules are required")
	}
	if c.Tolerance < 0 || c.Tolerance > models.MaxMinutes {
		return apperr.Validation("tolerance must be between 0 and %d", models.MaxMinutes)
	}
	for _, rule := range c.Rules {
		if err := minutesInRange("rule minutes", rule.Minutes); err != nil {
			return err
		}
		if err := nonNegative(&rule.Price); err != nil {
			return err
		}
	}
	return nil
}

func (c DeleteZone) Validate() error {
	if strings.TrimSpace(c.ZoneID) == "" {
		return apperr.Validation("zoneId is required")
	}
	return nil
}

func (GetZones) Validate() error     { return nil }
func (GetComputers) Validate() error { return nil }

func (c GetDailyRevenue) Validate() error {
	if c.Date != "" {
		if _, err := time.Parse("2006-01-02", c.Date); err != nil {
			return apperr.Validation("date must be YYYY-MM-DD")
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return apperr.Validation("unknown timezone %q", c.Timezone)
		}
	}
	return nil
}

func (c GetHistory) Validate() error {
	if c.From.IsZero() || c.To.IsZero() || !c.From.Before(c.To) {
		return apperr.Validation("from must be before to")
	}
	return nil
}

func (c GetReceipt) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return apperr.Validation("sessionId is required")
	}
	return nil
}

// Day resolves the requested calendar day, defaulting to today in the requested zone.
func (c GetDailyRevenue) Day(now time.Time) time.Time {
	loc := time.UTC
	if c.Timezone != "" {
		if l, err := time.LoadLocation(c.Timezone); err == nil {
			loc = l
		}
	}
	if c.Date == "" {
		return now.In(loc)
	}
	day, err := time.ParseInLocation("2006-01-02", c.Date, loc)
	if err != nil {
		return now.In(loc)
	}
	return day
}

// Zone converts the payload into a zone.
func (c SaveZone) Zone() models.Zone {
	return models.Zone{
		ID:        c.ZoneID,
		Name:      c.Name,
		Tolerance: c.Tolerance,
		Rules:     c.Rules,
		IsDefault: c.IsDefault,
	}
}

// Decode turns a frame into its command variant. Unknown types and malformed payloads
// are validation errors.
func Decode(frame Frame) (Command, error) {
	var cmd Command
	switch frame.Type {
	case CommandStartSession:
		cmd = &StartSession{}
	case CommandStartOpenSession:
		cmd = &StartOpenSession{}
	case CommandStopSession:
		cmd = &StopSession{}
	case CommandAddTime:
		cmd = &AddTime{}
	case CommandUpdateSession:
		cmd = &UpdateSession{}
	case CommandAddExtra:
		cmd = &AddExtra{}
	case CommandTogglePaid:
		cmd = &TogglePaid{}
	case CommandToggleMaintenance:
		cmd = &ToggleMaintenance{}
	case CommandMoveSession:
		cmd = &MoveSession{}
	case CommandRenameCustomer:
		cmd = &RenameCustomer{}
	case CommandInitializeComputers:
		cmd = &InitializeComputers{}
	case CommandAssignZone:
		cmd = &AssignZone{}
	case CommandSaveZone:
		cmd = &SaveZone{}
	case CommandDeleteZone:
		cmd = &DeleteZone{}
	case QueryZones:
		cmd = &GetZones{}
	case QueryComputers:
		cmd = &GetComputers{}
	case QueryDailyRevenue:
		cmd = &GetDailyRevenue{}
	case QueryHistory:
		cmd = &GetHistory{}
	case QueryReceipt:
		cmd = &GetReceipt{}
	default:
		return nil, apperr.Validation("unknown message type %q", frame.Type)
	}

	if len(frame.Payload) > 0 && string(frame.Payload) != "null" {
		if err := json.Unmarshal(frame.Payload, cmd); err != nil {
			return nil, apperr.Validation("malformed %s payload: %v", frame.Type, err)
		}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("id is required")
	}
	return nil
}

func nonNegative(price *decimal.Decimal) error {
	if price == nil {
		return nil
	}
	if price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if !models.IsCents(*price) {
		return apperr.Validation("price must have at most %d decimal places", models.MoneyPlaces)
	}
	return nil
}

func minutesInRange(field string, minutes int) error {
	if minutes <= 0 || minutes > models.MaxMinutes {
		return apperr.Validation("%s must be between 1 and %d", field, models.MaxMinutes)
	}
	return nil
}
