// Package broadcast pushes the terminal list of a tenant to its connected clients after
// every committed change.
package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/wire"
)

const defaultPushTimeout = 5 * time.Second

// Snapshotter loads a tenant's terminal list.
type Snapshotter interface {
	Terminals(ctx context.Context, tenantID string) ([]models.TerminalState, error)
}

// Sink delivers an encoded update to the clients of a tenant connected to this process.
type Sink interface {
	Broadcast(tenantID string, msg []byte) int
}

// Bus carries change notifications between service instances.
type Bus interface {
	Publish(ctx context.Context, tenantID string) error
	Subscribe(ctx context.Context, deliver func(tenantID string)) error
}

// Broadcaster coalesces change notifications per tenant and pushes full snapshots.
// Notifications never block the caller.
type Broadcaster struct {
	snapshots Snapshotter
	sink      Sink
	bus       Bus
	timeout   time.Duration
	logger    *zap.Logger

	// pushMu orders pushes against Join.
	pushMu sync.Mutex

	mu      sync.Mutex
	publish map[string]struct{}
	push    map[string]struct{}
	wake    chan struct{}
}

// New builds a broadcaster. A nil bus keeps fan-out inside this process.
func New(snapshots Snapshotter, sink Sink, bus Bus, timeout time.Duration, logger *zap.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		snapshots: snapshots,
		sink:      sink,
		bus:       bus,
		timeout:   timeout,
		logger:    logger,
		publish:   make(map[string]struct{}),
		push:      make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// TerminalsChanged schedules a snapshot push for tenantID.
func (b *Broadcaster) TerminalsChanged(tenantID string) {
	b.mu.Lock()
	if b.bus != nil {
		b.publish[tenantID] = struct{}{}
	} else {
		b.push[tenantID] = struct{}{}
	}
	b.mu.Unlock()
	b.signal()
}

// deliver schedules a local push for a notification received from the bus.
func (b *Broadcaster) deliver(tenantID string) {
	b.mu.Lock()
	b.push[tenantID] = struct{}{}
	b.mu.Unlock()
	b.signal()
}

func (b *Broadcaster) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run drains pending notifications until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.bus != nil {
		go func() {
			if err := b.bus.Subscribe(ctx, b.deliver); err != nil && ctx.Err() == nil {
				b.logger.Error("broadcast subscription ended", zap.Error(err))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
			b.flush(ctx)
		}
	}
}

func (b *Broadcaster) flush(ctx context.Context) {
	b.mu.Lock()
	publish, push := b.publish, b.push
	b.publish = make(map[string]struct{})
	b.push = make(map[string]struct{})
	b.mu.Unlock()

	for tenantID := range publish {
		if err := b.publishOne(ctx, tenantID); err != nil {
			b.logger.Warn("publish failed, pushing locally", zap.String("tenant_id", tenantID), zap.Error(err))
			push[tenantID] = struct{}{}
		}
	}
	for tenantID := range push {
		if err := b.Push(ctx, tenantID); err != nil {
			b.logger.Warn("snapshot push failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

func (b *Broadcaster) publishOne(ctx context.Context, tenantID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.bus.Publish(ctx, tenantID)
}

// Push sends the current snapshot of tenantID to its local clients.
func (b *Broadcaster) Push(ctx context.Context, tenantID string) error {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()

	msg, err := b.Snapshot(ctx, tenantID)
	if err != nil {
		return err
	}
	delivered := b.sink.Broadcast(tenantID, msg)
	b.logger.Debug("snapshot pushed", zap.String("tenant_id", tenantID), zap.Int("clients", delivered))
	return nil
}

// Join builds the snapshot of tenantID and hands it to join while no push is in flight.
// A client that join registers with the sink receives every later push after that
// snapshot and never one built before it.
func (b *Broadcaster) Join(ctx context.Context, tenantID string, join func(snapshot []byte)) error {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()

	msg, err := b.Snapshot(ctx, tenantID)
	if err != nil {
		return err
	}
	join(msg)
	return nil
}

// Snapshot encodes the current terminal list of tenantID as an update frame.
func (b *Broadcaster) Snapshot(ctx context.Context, tenantID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	states, err := b.snapshots.Terminals(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return wire.BuildUpdate(states)
}
