package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/auth"
	"lancenter/backend/services/terminals-service/internal/wire"
)

type echoProcessor struct {
	mu        sync.Mutex
	forgotten []string
}

func (p *echoProcessor) Process(_ context.Context, client wire.Client, raw []byte) ([]byte, error) {
	return []byte(client.TenantID + ":" + string(raw)), nil
}

func (p *echoProcessor) Forget(clientID string) {
	p.mu.Lock()
	p.forgotten = append(p.forgotten, clientID)
	p.mu.Unlock()
}

func (p *echoProcessor) forgottenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forgotten)
}

// staticJoiner broadcasts "before" ahead of the snapshot and "after" once the
// connection has joined.
type staticJoiner struct {
	manager *Manager
}

func (j staticJoiner) Join(_ context.Context, tenantID string, join func([]byte)) error {
	j.manager.Broadcast(tenantID, []byte("before"))
	join([]byte("snapshot:" + tenantID))
	j.manager.Broadcast(tenantID, []byte("after:"+tenantID))
	return nil
}

type harness struct {
	url       string
	tokens    *auth.TokenService
	manager   *Manager
	processor *echoProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tokens:    auth.NewTokenService("secret", time.Hour),
		manager:   NewManager(time.Minute, zap.NewNop()),
		processor: &echoProcessor{},
	}
	server := NewServer(h.manager, h.processor, staticJoiner{manager: h.manager}, Options{WriteTimeout: time.Second}, zap.NewNop())
	srv := httptest.NewServer(auth.Middleware(h.tokens)(http.HandlerFunc(server.HandleWS)))
	t.Cleanup(srv.Close)
	h.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return h
}

func (h *harness) dial(t *testing.T, tenantID string) *websocket.Conn {
	t.Helper()
	token, err := h.tokens.Issue(tenantID)
	require.NoError(t, err)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(h.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestRejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	_, resp, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSnapshotThenReplies(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "t1")

	assert.Equal(t, "snapshot:t1", readText(t, conn))
	assert.Equal(t, "after:t1", readText(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	assert.Equal(t, "t1:hello", readText(t, conn))
}

func TestBroadcastIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, "t1")
	b := h.dial(t, "t2")
	assert.Equal(t, "snapshot:t1", readText(t, a))
	assert.Equal(t, "after:t1", readText(t, a))
	assert.Equal(t, "snapshot:t2", readText(t, b))
	assert.Equal(t, "after:t2", readText(t, b))

	require.Eventually(t, func() bool {
		return h.manager.Count("t1") == 1 && h.manager.Count("t2") == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, h.manager.Broadcast("t1", []byte("update")))
	assert.Equal(t, "update", readText(t, a))

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "t2:ping", readText(t, b))
}

func TestDisconnectForgetsClient(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "t1")
	readText(t, conn)
	readText(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return h.manager.Count("t1") == 0 && h.processor.forgottenCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.manager.Broadcast("t1", []byte("update")))
}
