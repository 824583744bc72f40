package wire

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/wire/protocol"
)

type reply struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func process(t *testing.T, p *Processor, client Client, raw string) reply {
	t.Helper()
	out, err := p.Process(context.Background(), client, []byte(raw))
	require.NoError(t, err)
	var r reply
	require.NoError(t, json.Unmarshal(out, &r))
	return r
}

func newProcessor(limiter *ClientLimiter) *Processor {
	router := NewRouter()
	router.Register(protocol.CommandStopSession, Handle(func(ctx context.Context, client Client, cmd *protocol.StopSession) (interface{}, error) {
		return map[string]string{"tenant": client.TenantID, "stopped": cmd.ID}, nil
	}))
	router.Register(protocol.CommandTogglePaid, Handle(func(ctx context.Context, client Client, cmd *protocol.TogglePaid) (interface{}, error) {
		return nil, apperr.Precondition("terminal %s has no active session", cmd.ID)
	}))
	router.Register(protocol.CommandToggleMaintenance, Handle(func(ctx context.Context, client Client, cmd *protocol.ToggleMaintenance) (interface{}, error) {
		return nil, errors.New("connection reset")
	}))
	return NewProcessor(router, limiter, nil)
}

func TestProcessResult(t *testing.T) {
	p := newProcessor(nil)
	r := process(t, p, Client{ID: "c1", TenantID: "t1"}, `{"id":"42","type":"stop-session","payload":{"id":"7"}}`)

	assert.Equal(t, protocol.FrameResult, r.Type)
	assert.Equal(t, "42", r.ID)
	assert.JSONEq(t, `{"tenant":"t1","stopped":"7"}`, string(r.Data))
}

func TestProcessErrors(t *testing.T) {
	p := newProcessor(nil)
	client := Client{ID: "c1", TenantID: "t1"}

	testCases := []struct {
		name      string
		raw       string
		code      apperr.Kind
		retryable bool
	}{
		{name: "not json", raw: `hello`, code: apperr.KindValidation},
		{name: "unknown type", raw: `{"id":"1","type":"format-disk"}`, code: apperr.KindValidation},
		{name: "invalid payload", raw: `{"id":"1","type":"stop-session","payload":{}}`, code: apperr.KindValidation},
		{name: "no handler", raw: `{"id":"1","type":"get-zones"}`, code: apperr.KindValidation},
		{name: "precondition", raw: `{"id":"1","type":"toggle-paid","payload":{"id":"2"}}`, code: apperr.KindPrecondition},
		{name: "storage", raw: `{"id":"1","type":"toggle-maintenance","payload":{"id":"2"}}`, code: apperr.KindStorage, retryable: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := process(t, p, client, tc.raw)
			assert.Equal(t, protocol.FrameError, r.Type)
			assert.Equal(t, string(tc.code), r.Error.Code)
			assert.Equal(t, tc.retryable, r.Error.Retryable)
			assert.NotContains(t, r.Error.Message, "connection reset")
		})
	}
}

func TestProcessRateLimited(t *testing.T) {
	p := newProcessor(NewClientLimiter(rate.Limit(0.001), 2))
	raw := `{"id":"1","type":"stop-session","payload":{"id":"7"}}`

	assert.Equal(t, protocol.FrameResult, process(t, p, Client{ID: "c1"}, raw).Type)
	assert.Equal(t, protocol.FrameResult, process(t, p, Client{ID: "c1"}, raw).Type)
	limited := process(t, p, Client{ID: "c1"}, raw)
	assert.Equal(t, string(apperr.KindRateLimited), limited.Error.Code)

	assert.Equal(t, protocol.FrameResult, process(t, p, Client{ID: "c2"}, raw).Type)

	p.Forget("c1")
	assert.Equal(t, protocol.FrameResult, process(t, p, Client{ID: "c1"}, raw).Type)
}

func TestBuildUpdateNeverNull(t *testing.T) {
	out, err := BuildUpdate(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"computers-update","data":[]}`, string(out))
}
