// Package wire decodes client frames, dispatches them to handlers and encodes the replies.
package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

// Client identifies the connection a frame arrived on.
type Client struct {
	ID       string
	TenantID string
}

// HandlerFunc executes one command for the client's tenant and returns the result data.
type HandlerFunc func(ctx context.Context, client Client, cmd protocol.Command) (interface{}, error)

// Handle adapts a handler for a concrete command variant.
func Handle[T protocol.Command](fn func(ctx context.Context, client Client, cmd T) (interface{}, error)) HandlerFunc {
	return func(ctx context.Context, client Client, cmd protocol.Command) (interface{}, error) {
		typed, ok := cmd.(T)
		if !ok {
			return nil, fmt.Errorf("wire: %s routed to handler for %T", cmd.Name(), typed)
		}
		return fn(ctx, client, typed)
	}
}

// Router dispatches commands to handlers by name.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches handler to a command name.
func (r *Router) Register(name string, handler HandlerFunc) {
	r.handlers[name] = handler
}

// Route executes the handler for cmd.
func (r *Router) Route(ctx context.Context, client Client, cmd protocol.Command) (interface{}, error) {
	handler, ok := r.handlers[cmd.Name()]
	if !ok {
		return nil, apperr.Validation("unsupported message type %q", cmd.Name())
	}
	return handler(ctx, client, cmd)
}

// Processor ties together parsing, rate limiting, routing and reply encoding.
type Processor struct {
	router  *Router
	limiter *ClientLimiter
	logger  *zap.Logger
}

// NewProcessor builds Processor. A nil limiter disables throttling.
func NewProcessor(router *Router, limiter *ClientLimiter, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{router: router, limiter: limiter, logger: logger}
}

// Process handles one raw frame and returns the encoded reply.
func (p *Processor) Process(ctx context.Context, client Client, raw []byte) ([]byte, error) {
	var frame protocol.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return BuildError("", apperr.Validation("malformed frame: %v", err))
	}

	if p.limiter != nil && !p.limiter.Allow(client.ID) {
		return BuildError(frame.ID, apperr.RateLimited())
	}

	cmd, err := protocol.Decode(frame)
	if err != nil {
		p.logger.Debug("frame rejected", zap.String("client_id", client.ID), zap.String("type", frame.Type), zap.Error(err))
		return BuildError(frame.ID, err)
	}

	data, err := p.router.Route(ctx, client, cmd)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindStorage {
			p.logger.Error("command failed", zap.String("tenant_id", client.TenantID), zap.String("type", frame.Type), zap.Error(err))
		}
		return BuildError(frame.ID, err)
	}

	reply, err := BuildResult(frame.ID, data)
	if err != nil {
		p.logger.Error("encode reply failed", zap.String("type", frame.Type), zap.Error(err))
		return nil, err
	}
	return reply, nil
}

// Forget releases per-client state after a disconnect.
func (p *Processor) Forget(clientID string) {
	if p.limiter != nil {
		p.limiter.Remove(clientID)
	}
}

// BuildResult encodes a result frame.
func BuildResult(id string, data interface{}) ([]byte, error) {
	return json.Marshal(protocol.ResultFrame{Type: protocol.FrameResult, ID: id, Data: data})
}

// BuildError encodes an error frame. Storage causes are not exposed to clients.
func BuildError(id string, err error) ([]byte, error) {
	appErr := apperr.Ensure(err)
	return json.Marshal(protocol.ErrorFrame{
		Type: protocol.FrameError,
		ID:   id,
		Error: protocol.ErrorBody{
			Code:      string(appErr.Kind),
			Message:   appErr.Message,
			Retryable: appErr.Retryable(),
		},
	})
}

// BuildUpdate encodes the terminal list broadcast.
func BuildUpdate(states []models.TerminalState) ([]byte, error) {
	if states == nil {
		states = []models.TerminalState{}
	}
	return json.Marshal(protocol.UpdateFrame{Type: protocol.FrameComputersUpdate, Data: states})
}
