package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
	"lancenter/backend/services/terminals-service/internal/service"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zap.NewNop()), mock
}

var (
	terminalCols = []string{"tenant_id", "id", "name", "status", "zone_id"}
	sessionCols  = []string{"id", "tenant_id", "terminal_id", "customer_name", "mode", "start_time", "end_time", "actual_end_time", "price", "is_paid", "active"}
)

func TestUpdateCommitsUnderTenantLock(t *testing.T) {
	store, mock := newTestStore(t)
	key := models.TerminalKey{TenantID: "t1", TerminalID: "1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM terminals`)).
		WithArgs("t1", "1").
		WillReturnRows(sqlmock.NewRows(terminalCols).AddRow("t1", "1", "PC-01", "available", nil))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO terminals`)).
		WithArgs("t1", "1", "PC-01", models.TerminalMaintenance, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "t1", func(tx service.Tx) error {
		terminal, err := tx.Terminal(context.Background(), key)
		if err != nil {
			return err
		}
		require.NotNil(t, terminal)
		assert.Empty(t, terminal.ZoneID)
		terminal.Status = models.TerminalMaintenance
		return tx.SaveTerminal(context.Background(), terminal)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	store, mock := newTestStore(t)
	boom := apperr.Precondition("terminal busy")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "t1", func(service.Tx) error { return boom })
	assert.True(t, errors.Is(err, boom))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationBecomesPrecondition(t *testing.T) {
	store, mock := newTestStore(t)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, Message: "duplicate key"})
	mock.ExpectRollback()

	err := store.Update(context.Background(), "t1", func(tx service.Tx) error {
		return tx.InsertSession(context.Background(), &models.Session{
			ID:          "s1",
			TerminalKey: models.TerminalKey{TenantID: "t1", TerminalID: "1"},
			Mode:        models.ModeOpen,
			StartTime:   start,
			Price:       decimal.Zero,
			Active:      true,
		})
	})
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSerializationFailureIsRetryableStorage(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`pg_advisory_xact_lock`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: codeSerializationFailure})

	err := store.Update(context.Background(), "t1", func(service.Tx) error { return nil })
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.Retryable())
}

func TestViewScansSessions(t *testing.T) {
	store, mock := newTestStore(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	start := from.Add(10 * time.Hour)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions`)).
		WithArgs("t1", from, to, "").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s2", "t1", "2", "Bo", "open", start.Add(time.Hour), nil, nil, "0.00", false, true).
			AddRow("s1", "t1", "1", "Ana", "fixed", start, end, end, "1.50", true, false))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM session_events`)).
		WithArgs("t1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "tenant_id", "terminal_id", "type", "description", "minutes", "price", "created_at"}).
			AddRow("e1", "s1", "t1", "1", "start", "Start (60 min)", 60, "1.50", start).
			AddRow("e2", "s1", "t1", "1", "stop", "Stopped", nil, "0.00", end))
	mock.ExpectCommit()

	err := store.View(context.Background(), "t1", func(tx service.Tx) error {
		sessions, err := tx.SessionsStarted(context.Background(), "t1", from, to, "")
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Nil(t, sessions[0].EndTime)
		assert.Equal(t, models.ModeFixed, sessions[1].Mode)
		require.NotNil(t, sessions[1].EndTime)
		assert.Equal(t, end, *sessions[1].EndTime)
		assert.True(t, sessions[1].Price.Equal(decimal.RequireFromString("1.50")))

		events, err := tx.Events(context.Background(), "t1", "s1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.NotNil(t, events[0].Minutes)
		assert.Equal(t, 60, *events[0].Minutes)
		assert.Nil(t, events[1].Minutes)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDefaultZoneClearsPreviousDefault(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewZoneRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE zones`)).
		WithArgs("t1", "z2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO zones`)).
		WithArgs("t1", "z2", "VIP", 5, `[{"minutes":60,"price":"2.5"}]`, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.SaveZone(context.Background(), &models.Zone{
		ID:        "z2",
		TenantID:  "t1",
		Name:      "VIP",
		Tolerance: 5,
		Rules:     []models.PriceRule{{Minutes: 60, Price: decimal.RequireFromString("2.50")}},
		IsDefault: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestZonesDecodesRules(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM zones`)).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "tolerance", "rules", "is_default"}).
			AddRow("z1", "t1", "Main", 5, []byte(`[{"minutes":30,"price":"1.00"},{"minutes":60,"price":"1.50"}]`), true))

	list, err := NewZoneRepository(db).Zones(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Rules, 2)
	assert.Equal(t, 60, list[0].Rules[1].Minutes)
	assert.True(t, list[0].Rules[1].Price.Equal(decimal.RequireFromString("1.50")))
}

func TestUpdateSessionMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSessionRepository(db).UpdateSession(context.Background(), &models.Session{ID: "s1", TerminalKey: models.TerminalKey{TenantID: "t1", TerminalID: "1"}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
