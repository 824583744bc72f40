package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionMode distinguishes prepaid and open-ended rentals.
type SessionMode string

// Session modes.
const (
	ModeFixed SessionMode = "fixed"
	ModeOpen  SessionMode = "open"
)

// Valid reports whether m is a known mode.
func (m SessionMode) Valid() bool {
	return m == ModeFixed || m == ModeOpen
}

// MaxMinutes bounds every single duration the system accepts: a booked block, an
// extension and the size of a price rule.
const MaxMinutes = 7 * 24 * 60

// MoneyPlaces is the number of decimal places stored for every amount.
const MoneyPlaces = 2

// IsCents reports whether amount has no more than MoneyPlaces decimal places.
func IsCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyPlaces))
}

// DefaultCustomerName is used when a session starts without a customer name.
const DefaultCustomerName = "Customer"

// Session is one occupancy of a terminal from start to stop.
type Session struct {
	ID string `json:"id"`
	TerminalKey
	CustomerName string          `json:"customer_name"`
	Mode         SessionMode     `json:"mode"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	ActualEnd    *time.Time      `json:"actual_end_time,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Paid         bool            `json:"is_paid"`
	Active       bool            `json:"active"`
}

// BookedMinutes returns the duration between start and expected end for fixed sessions.
func (s *Session) BookedMinutes() int {
	if s.EndTime == nil {
		return 0
	}
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}

// ElapsedMinutes returns whole minutes since start at now, rounded up.
func (s *Session) ElapsedMinutes(now time.Time) int {
	elapsed := now.Sub(s.StartTime)
	if elapsed <= 0 {
		return 0
	}
	minutes := int(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.ActualEnd != nil {
		end := *s.ActualEnd
		out.ActualEnd = &end
	}
	return &out
}

// Charge is an ad-hoc item billed within a session.
type Charge struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TerminalKey
	Description string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"time"`
}

// EventType classifies entries of the session audit trail.
type EventType string

// Event types.
const (
	EventStart  EventType = "start"
	EventOpen   EventType = "open"
	EventAdd    EventType = "add"
	EventExtra  EventType = "extra"
	EventUpdate EventType = "update"
	EventStop   EventType = "stop"
	EventMove   EventType = "move"
	EventPaid   EventType = "paid"
	EventRename EventType = "rename"
)

// SessionEvent is an immutable audit entry. Price holds the change the action applied
// to the session's accrued price.
type SessionEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TerminalKey
	Type        EventType       `json:"type"`
	Description string          `json:"description"`
	Minutes     *int            `json:"minutes,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"time"`
}

// SessionRecord is a session together with its billing trail.
type SessionRecord struct {
	Session
	Charges []Charge       `json:"extras"`
	Events  []SessionEvent `json:"history"`
}

// ChargesTotal sums the charge prices.
func ChargesTotal(charges []Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Price)
	}
	return total
}

// EventsTotal sums the event prices.
func EventsTotal(events []SessionEvent) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		total = total.Add(e.Price)
	}
	return total
}

// Revenue summarises the sessions started inside a window.
type Revenue struct {
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Sessions int             `json:"sessions"`
	Total    decimal.Decimal `json:"total"`
}

// Receipt is the billing view of a single session.
type Receipt struct {
	Session Session         `json:"session"`
	Events  []SessionEvent  `json:"history"`
	Charges []Charge        `json:"extras"`
	Total   decimal.Decimal `json:"total"`
}
