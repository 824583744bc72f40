package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks operator connections grouped by tenant.
type Manager struct {
	mu           sync.RWMutex
	tenants      map[string]map[string]*Connection
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewManager builds connection manager.
func NewManager(pingInterval time.Duration, logger *zap.Logger) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tenants:      make(map[string]map[string]*Connection),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers new connection.
func (m *Manager) Add(conn *Connection) {
	client := conn.Client()
	m.mu.Lock()
	defer m.mu.Unlock()
	conns, ok := m.tenants[client.TenantID]
	if !ok {
		conns = make(map[string]*Connection)
		m.tenants[client.TenantID] = conns
	}
	conns[client.ID] = conn
}

// Remove removes connection.
func (m *Manager) Remove(tenantID, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := m.tenants[tenantID]
	delete(conns, clientID)
	if len(conns) == 0 {
		delete(m.tenants, tenantID)
	}
}

// Count returns the number of connections of a tenant.
func (m *Manager) Count(tenantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tenants[tenantID])
}

// Broadcast queues msg on every connection of the tenant and returns how many accepted it.
func (m *Manager) Broadcast(tenantID string, msg []byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sent := 0
	for _, conn := range m.tenants[tenantID] {
		if conn.Send(msg) {
			sent++
		}
	}
	return sent
}

// CloseAll disconnects every client.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conns := range m.tenants {
		for _, conn := range conns {
			conn.Close()
		}
	}
}

// Start begins ping loop to keep connections active.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			for _, conns := range m.tenants {
				for _, conn := range conns {
					if err := conn.Ping(); err != nil {
						m.logger.Debug("ping failed", zap.String("client_id", conn.Client().ID), zap.Error(err))
					}
				}
			}
			m.mu.RUnlock()
		}
	}
}
