// Package memory keeps tenant state in process. Each unit of work writes to a private
// draft over the tenant's committed state that is merged in only on success.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/service"
)

var (
	// ErrReadOnly is returned by writes inside View.
	ErrReadOnly = errors.New("memory: read-only transaction")
	// ErrConstraint mirrors a violated storage constraint.
	ErrConstraint = errors.New("memory: constraint violation")
	// ErrTenantMismatch is returned when a row belongs to another tenant than the unit of work.
	ErrTenantMismatch = errors.New("memory: tenant mismatch")
)

// Store is an in-process service.Store.
type Store struct {
	mu      sync.Mutex
	tenants map[string]*tenant
}

// tenant serialises writers on writer. mu guards state against commits while
// readers run.
type tenant struct {
	writer sync.Mutex
	mu     sync.RWMutex
	state  *tenantState
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tenants: make(map[string]*tenant)}
}

// Update runs fn on a draft over the tenant state and commits it when fn succeeds.
func (s *Store) Update(ctx context.Context, tenantID string, fn func(service.Tx) error) error {
	tn := s.tenant(tenantID)
	tn.writer.Lock()
	defer tn.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := tn.state.draft()
	if err := fn(&tx{tenantID: tenantID, state: draft, base: tn.state}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tn.mu.Lock()
	tn.state.apply(draft)
	tn.mu.Unlock()
	return nil
}

// View runs fn against the committed tenant state.
func (s *Store) View(ctx context.Context, tenantID string, fn func(service.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tn := s.tenant(tenantID)
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	return fn(&tx{tenantID: tenantID, state: tn.state, readOnly: true})
}

func (s *Store) tenant(tenantID string) *tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	tn, ok := s.tenants[tenantID]
	if !ok {
		tn = &tenant{state: newTenantState()}
		s.tenants[tenantID] = tn
	}
	return tn
}

type tenantState struct {
	terminals map[string]models.Terminal
	zones     map[string]models.Zone
	// active maps a terminal id to its active session id.
	active   map[string]string
	sessions map[string]models.Session
	charges  map[string][]models.Charge
	events   map[string][]models.SessionEvent
}

func newTenantState() *tenantState {
	return &tenantState{
		terminals: make(map[string]models.Terminal),
		zones:     make(map[string]models.Zone),
		active:    make(map[string]string),
		sessions:  make(map[string]models.Session),
		charges:   make(map[string][]models.Charge),
		events:    make(map[string][]models.SessionEvent),
	}
}

// draft copies the per-terminal maps. Sessions, charges and events start empty and
// hold only the rows written by the unit of work; reads fall through to st.
func (st *tenantState) draft() *tenantState {
	out := newTenantState()
	for k, v := range st.terminals {
		out.terminals[k] = v
	}
	for k, v := range st.zones {
		out.zones[k] = v
	}
	for k, v := range st.active {
		out.active[k] = v
	}
	return out
}

// apply commits a draft produced by st.draft.
func (st *tenantState) apply(d *tenantState) {
	st.terminals = d.terminals
	st.zones = d.zones
	st.active = d.active
	for k, v := range d.sessions {
		st.sessions[k] = v
	}
	for k, v := range d.charges {
		st.charges[k] = v
	}
	for k, v := range d.events {
		st.events[k] = v
	}
}

type tx struct {
	tenantID string
	state    *tenantState
	// base is the committed state under a draft, nil in View.
	base     *tenantState
	readOnly bool
}

func (t *tx) session(id string) (models.Session, bool) {
	if s, ok := t.state.sessions[id]; ok {
		return s, true
	}
	if t.base != nil {
		s, ok := t.base.sessions[id]
		return s, ok
	}
	return models.Session{}, false
}

func (t *tx) charges(sessionID string) []models.Charge {
	if c, ok := t.state.charges[sessionID]; ok || t.base == nil {
		return c
	}
	return t.base.charges[sessionID]
}

func (t *tx) events(sessionID string) []models.SessionEvent {
	if e, ok := t.state.events[sessionID]; ok || t.base == nil {
		return e
	}
	return t.base.events[sessionID]
}

// eachSession visits every session once, draft rows shadowing committed ones.
func (t *tx) eachSession(visit func(models.Session)) {
	for _, s := range t.state.sessions {
		visit(s)
	}
	if t.base == nil {
		return
	}
	for id, s := range t.base.sessions {
		if _, shadowed := t.state.sessions[id]; !shadowed {
			visit(s)
		}
	}
}

func (t *tx) check(tenantID string) error {
	if tenantID != t.tenantID {
		return fmt.Errorf("%w: %s", ErrTenantMismatch, tenantID)
	}
	return nil
}

func (t *tx) write(tenantID string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	return t.check(tenantID)
}

func (t *tx) Terminal(_ context.Context, key models.TerminalKey) (*models.Terminal, error) {
	if err := t.check(key.TenantID); err != nil {
		return nil, err
	}
	terminal, ok := t.state.terminals[key.TerminalID]
	if !ok {
		return nil, nil
	}
	return &terminal, nil
}

func (t *tx) Terminals(_ context.Context, tenantID string) ([]models.Terminal, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	out := make([]models.Terminal, 0, len(t.state.terminals))
	for _, terminal := range t.state.terminals {
		out = append(out, terminal)
	}
	sort.Slice(out, func(i, j int) bool { return terminalLess(out[i].TerminalID, out[j].TerminalID) })
	return out, nil
}

func (t *tx) SaveTerminal(_ context.Context, terminal *models.Terminal) error {
	if err := t.write(terminal.TenantID); err != nil {
		return err
	}
	if terminal.ZoneID != "" {
		if _, ok := t.state.zones[terminal.ZoneID]; !ok {
			return fmt.Errorf("%w: unknown zone %s", ErrConstraint, terminal.ZoneID)
		}
	}
	t.state.terminals[terminal.TerminalID] = *terminal
	return nil
}

func (t *tx) ActiveSession(_ context.Context, key models.TerminalKey) (*models.Session, error) {
	if err := t.check(key.TenantID); err != nil {
		return nil, err
	}
	id, ok := t.state.active[key.TerminalID]
	if !ok {
		return nil, nil
	}
	s, ok := t.session(id)
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (t *tx) Session(_ context.Context, tenantID, sessionID string) (*models.Session, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	s, ok := t.session(sessionID)
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (t *tx) SessionsStarted(_ context.Context, tenantID string, from, to time.Time, terminalID string) ([]models.Session, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	var out []models.Session
	t.eachSession(func(s models.Session) {
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			return
		}
		if terminalID != "" && s.TerminalID != terminalID {
			return
		}
		out = append(out, *s.Clone())
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) InsertSession(ctx context.Context, session *models.Session) error {
	if err := t.write(session.TenantID); err != nil {
		return err
	}
	if _, ok := t.session(session.ID); ok {
		return fmt.Errorf("%w: duplicate session %s", ErrConstraint, session.ID)
	}
	if err := t.checkSessionRow(ctx, session); err != nil {
		return err
	}
	t.putSession(nil, session)
	return nil
}

func (t *tx) UpdateSession(ctx context.Context, session *models.Session) error {
	if err := t.write(session.TenantID); err != nil {
		return err
	}
	previous, ok := t.session(session.ID)
	if !ok {
		return fmt.Errorf("%w: unknown session %s", ErrConstraint, session.ID)
	}
	if err := t.checkSessionRow(ctx, session); err != nil {
		return err
	}
	t.putSession(&previous, session)
	return nil
}

// putSession stores session and moves its active index entry off previous.
func (t *tx) putSession(previous, session *models.Session) {
	if previous != nil && previous.Active && t.state.active[previous.TerminalID] == previous.ID {
		delete(t.state.active, previous.TerminalID)
	}
	if session.Active {
		t.state.active[session.TerminalID] = session.ID
	}
	t.state.sessions[session.ID] = *session.Clone()
}

// checkSessionRow enforces the terminal reference and one active session per terminal.
func (t *tx) checkSessionRow(_ context.Context, session *models.Session) error {
	if _, ok := t.state.terminals[session.TerminalID]; !ok {
		return fmt.Errorf("%w: unknown terminal %s", ErrConstraint, session.TerminalID)
	}
	if !session.Active {
		return nil
	}
	if id, ok := t.state.active[session.TerminalID]; ok && id != session.ID {
		return fmt.Errorf("%w: terminal %s already has active session %s", ErrConstraint, session.TerminalID, id)
	}
	return nil
}

func (t *tx) Charges(_ context.Context, tenantID, sessionID string) ([]models.Charge, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	return append([]models.Charge(nil), t.charges(sessionID)...), nil
}

func (t *tx) InsertCharge(_ context.Context, charge *models.Charge) error {
	if err := t.write(charge.TenantID); err != nil {
		return err
	}
	if _, ok := t.session(charge.SessionID); !ok {
		return fmt.Errorf("%w: unknown session %s", ErrConstraint, charge.SessionID)
	}
	current := t.charges(charge.SessionID)
	next := make([]models.Charge, len(current), len(current)+1)
	copy(next, current)
	t.state.charges[charge.SessionID] = append(next, *charge)
	return nil
}

func (t *tx) Events(_ context.Context, tenantID, sessionID string) ([]models.SessionEvent, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	return append([]models.SessionEvent(nil), t.events(sessionID)...), nil
}

func (t *tx) InsertEvent(_ context.Context, event *models.SessionEvent) error {
	if err := t.write(event.TenantID); err != nil {
		return err
	}
	if _, ok := t.session(event.SessionID); !ok {
		return fmt.Errorf("%w: unknown session %s", ErrConstraint, event.SessionID)
	}
	current := t.events(event.SessionID)
	next := make([]models.SessionEvent, len(current), len(current)+1)
	copy(next, current)
	t.state.events[event.SessionID] = append(next, *event)
	return nil
}

func (t *tx) Zones(_ context.Context, tenantID string) ([]models.Zone, error) {
	if err := t.check(tenantID); err != nil {
		return nil, err
	}
	out := make([]models.Zone, 0, len(t.state.zones))
	for _, z := range t.state.zones {
		z.Rules = append([]models.PriceRule(nil), z.Rules...)
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) SaveZone(_ context.Context, zone *models.Zone) error {
	if err := t.write(zone.TenantID); err != nil {
		return err
	}
	if zone.IsDefault {
		for id, z := range t.state.zones {
			if id != zone.ID && z.IsDefault {
				z.IsDefault = false
				t.state.zones[id] = z
			}
		}
	}
	stored := *zone
	stored.Rules = append([]models.PriceRule(nil), zone.Rules...)
	t.state.zones[zone.ID] = stored
	return nil
}

func (t *tx) DeleteZone(_ context.Context, tenantID, zoneID string) error {
	if err := t.write(tenantID); err != nil {
		return err
	}
	for _, terminal := range t.state.terminals {
		if terminal.ZoneID == zoneID {
			return fmt.Errorf("%w: zone %s still assigned to terminal %s", ErrConstraint, zoneID, terminal.TerminalID)
		}
	}
	delete(t.state.zones, zoneID)
	return nil
}

func (t *tx) UnassignZone(_ context.Context, tenantID, zoneID string) error {
	if err := t.write(tenantID); err != nil {
		return err
	}
	for id, terminal := range t.state.terminals {
		if terminal.ZoneID == zoneID {
			terminal.ZoneID = ""
			t.state.terminals[id] = terminal
		}
	}
	return nil
}

// terminalLess orders numeric ids numerically ("2" before "10").
func terminalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
