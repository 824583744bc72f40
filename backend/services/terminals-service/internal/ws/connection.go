package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/wire"
)

const (
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// MessageProcessor handles raw client frames.
type MessageProcessor interface {
	Process(ctx context.Context, client wire.Client, raw []byte) ([]byte, error)
	Forget(clientID string)
}

// Connection represents one authenticated operator WebSocket.
type Connection struct {
	client       wire.Client
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	processor    MessageProcessor
	writeTimeout time.Duration
	readTimeout  time.Duration
	onClose      func(client wire.Client)

	mu     sync.Mutex
	closed bool
}

// NewConnection builds connection wrapper.
func NewConnection(client wire.Client, ws *websocket.Conn, processor MessageProcessor, writeTimeout, readTimeout time.Duration, logger *zap.Logger, onClose func(wire.Client)) *Connection {
	return &Connection{
		client:       client,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		logger:       logger.With(zap.String("client_id", client.ID), zap.String("tenant_id", client.TenantID)),
		processor:    processor,
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
		onClose:      onClose,
	}
}

// Client returns the connection identity.
func (c *Connection) Client() wire.Client {
	return c.client
}

// Start launches the write pump and blocks in the read pump.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed", zap.Error(err))
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))

		response, err := c.processor.Process(ctx, c.client, message)
		if err != nil {
			c.logger.Warn("failed to process message", zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

// Send enqueues a message for writing. It reports false when the connection is closed
// or its buffer is full.
func (c *Connection) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("dropping outgoing message, buffer full")
		return false
	}
}

// Ping sends a ping control frame. Safe to call alongside the write pump.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout))
}

// Close ends the connection; the read pump then runs cleanup.
func (c *Connection) Close() {
	_ = c.ws.Close()
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.client)
	}
}
