package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/auth"
	"lancenter/backend/services/terminals-service/internal/models"
)

// TerminalLister returns the terminal list of a tenant.
type TerminalLister interface {
	Terminals(ctx context.Context, tenantID string) ([]models.TerminalState, error)
}

// Pinger reports storage liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler returns GET /health handler. A nil pinger always reports ok.
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewTerminalsHandler returns GET /terminals handler, the same list pushed over /ws.
func NewTerminalsHandler(lister TerminalLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := auth.TenantIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		states, err := lister.Terminals(r.Context(), tenantID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindStorage {
				logger.Error("list terminals failed", zap.String("tenant_id", tenantID), zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
			writeError(w, http.StatusBadRequest, apperr.Ensure(err).Message)
			return
		}
		if states == nil {
			states = []models.TerminalState{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"terminals": states})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
