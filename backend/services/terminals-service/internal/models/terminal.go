package models

import (
	"fmt"
	"strings"
)

// TerminalStatus is the occupancy state of a terminal.
type TerminalStatus string

// Terminal status values.
const (
	TerminalAvailable   TerminalStatus = "available"
	TerminalOccupied    TerminalStatus = "occupied"
	TerminalMaintenance TerminalStatus = "maintenance"
)

// Valid reports whether s is a known status.
func (s TerminalStatus) Valid() bool {
	switch s {
	case TerminalAvailable, TerminalOccupied, TerminalMaintenance:
		return true
	}
	return false
}

// TerminalKey identifies a terminal within a tenant. Sessions, charges and events
// reference terminals only through this pair.
type TerminalKey struct {
	TenantID   string `json:"tenant_id"`
	TerminalID string `json:"terminal_id"`
}

// Validate checks that both halves of the key are present.
func (k TerminalKey) Validate() error {
	if strings.TrimSpace(k.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(k.TerminalID) == "" {
		return fmt.Errorf("terminal id is required")
	}
	return nil
}

func (k TerminalKey) String() string {
	return k.TenantID + "/" + k.TerminalID
}

// Terminal is a rentable computer.
type Terminal struct {
	TerminalKey
	Name   string         `json:"name"`
	Status TerminalStatus `json:"status"`
	// ZoneID empty means the tenant default zone.
	ZoneID string `json:"zone_id,omitempty"`
}

// TerminalName formats the display name used when terminals are provisioned.
func TerminalName(index int) string {
	return fmt.Sprintf("PC-%02d", index)
}

// TerminalState is one entry of the terminal list pushed to clients.
type TerminalState struct {
	Terminal
	Session *Session       `json:"session,omitempty"`
	Charges []Charge       `json:"extras,omitempty"`
	History []SessionEvent `json:"history,omitempty"`
}
