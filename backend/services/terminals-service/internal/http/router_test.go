package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/auth"
	"lancenter/backend/services/terminals-service/internal/models"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type listerFunc func(ctx context.Context, tenantID string) ([]models.TerminalState, error)

func (f listerFunc) Terminals(ctx context.Context, tenantID string) ([]models.TerminalState, error) {
	return f(ctx, tenantID)
}

func newTestRouter(db Pinger, lister TerminalLister, tokens *auth.TokenService) http.Handler {
	return NewRouter(Routes{
		Health:    NewHealthHandler(db),
		Terminals: NewTerminalsHandler(lister, zap.NewNop()),
		Auth:      auth.Middleware(tokens),
	})
}

func TestHealth(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	tests := []struct {
		name   string
		db     Pinger
		status int
	}{
		{name: "no db", status: http.StatusOK},
		{name: "db up", db: pingFunc(func(context.Context) error { return nil }), status: http.StatusOK},
		{name: "db down", db: pingFunc(func(context.Context) error { return errors.New("down") }), status: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(tc.db, nil, tokens).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, auth.NewTokenService("secret", time.Hour)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestTerminalsRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, auth.NewTokenService("secret", time.Hour)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terminals", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTerminalsScopedToTokenTenant(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	token, err := tokens.Issue("t1")
	require.NoError(t, err)

	var gotTenant string
	lister := listerFunc(func(_ context.Context, tenantID string) ([]models.TerminalState, error) {
		gotTenant = tenantID
		return []models.TerminalState{{Terminal: models.Terminal{
			TerminalKey: models.TerminalKey{TenantID: tenantID, TerminalID: "1"},
			Name:        "PC-01",
			Status:      models.TerminalAvailable,
		}}}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/terminals?token="+token, nil)
	rec := httptest.NewRecorder()
	newTestRouter(nil, lister, tokens).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", gotTenant)
	var body struct {
		Terminals []struct {
			Name string `json:"name"`
		} `json:"terminals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Terminals, 1)
	assert.Equal(t, "PC-01", body.Terminals[0].Name)
}

func TestTerminalsStorageFailure(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	token, err := tokens.Issue("t1")
	require.NoError(t, err)
	lister := listerFunc(func(context.Context, string) ([]models.TerminalState, error) {
		return nil, apperr.Storage(errors.New("conn reset"))
	})

	req := httptest.NewRequest(http.MethodGet, "/terminals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter(nil, lister, tokens).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "conn reset")
}
