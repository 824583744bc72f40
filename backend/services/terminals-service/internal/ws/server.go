// Package ws serves the operator websocket and fans terminal updates out per tenant.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/auth"
	"lancenter/backend/services/terminals-service/internal/wire"
)

// Joiner hands a new connection its first snapshot. join must run while no
// broadcast for the tenant is being built.
type Joiner interface {
	Join(ctx context.Context, tenantID string, join func(snapshot []byte)) error
}

// Options tunes connection timeouts.
type Options struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// Server upgrades authenticated HTTP requests to operator WebSockets.
type Server struct {
	manager   *Manager
	processor MessageProcessor
	joiner    Joiner
	logger    *zap.Logger
	opts      Options
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, joiner Joiner, opts Options, logger *zap.Logger) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Server{
		manager:   manager,
		processor: processor,
		joiner:    joiner,
		logger:    logger,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for the /ws endpoint. It must run behind auth.Middleware.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := wire.Client{ID: uuid.NewString(), TenantID: tenantID}
	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(client, conn, s.processor, s.opts.WriteTimeout, s.opts.ReadTimeout, s.logger, func(c wire.Client) {
		s.manager.Remove(c.TenantID, c.ID)
		s.processor.Forget(c.ID)
		cancel()
		s.logger.Info("operator disconnected", zap.String("client_id", c.ID), zap.String("tenant_id", c.TenantID))
	})
	s.join(ctx, connection)

	go connection.Start(ctx)
	s.logger.Info("operator connected", zap.String("client_id", client.ID), zap.String("tenant_id", tenantID))
}

// join queues the first snapshot ahead of any broadcast, then registers the connection.
func (s *Server) join(ctx context.Context, connection *Connection) {
	if s.joiner == nil {
		s.manager.Add(connection)
		return
	}
	tenantID := connection.Client().TenantID
	err := s.joiner.Join(ctx, tenantID, func(snapshot []byte) {
		connection.Send(snapshot)
		s.manager.Add(connection)
	})
	if err != nil {
		s.logger.Warn("initial snapshot failed", zap.String("tenant_id", tenantID), zap.Error(err))
		s.manager.Add(connection)
	}
}
