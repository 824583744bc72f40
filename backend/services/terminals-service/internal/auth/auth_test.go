package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, err := svc.Issue("club-7")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "club-7", claims.TenantID)

	_, err = svc.Issue(" ")
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	other := NewTokenService("other", time.Hour)

	foreign, err := other.Issue("club-7")
	require.NoError(t, err)

	expired := NewTokenService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("club-7")
	require.NoError(t, err)

	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)
	for name, token := range map[string]string{"garbage": "abc.def", "wrong key": foreign, "expired": old, "no tenant": noTenant} {
		_, err := svc.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken), name)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic h")
	assert.Empty(t, TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, err := svc.Issue("club-7")
	require.NoError(t, err)

	var seen string
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TenantIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "club-7", seen)
}
