package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	a := NewAuthenticator(secret)
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		require.True(t, ok)
		return c.String(http.StatusOK, id.String())
	}, a.RequireAuth)
	e.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, a.RequireAdmin)
	return e
}

func token(t *testing.T, role string, id uuid.UUID, exp time.Time) string {
	t.Helper()
	tok, err := tokens.CreateAccessToken(secret, role, id.String(), exp)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth_Cookie(t *testing.T) {
	e := newServer(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(tokens.CreateCookie(token(t, "user", id, time.Now().Add(time.Hour)), time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), rec.Body.String())
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	e := newServer(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "user", id, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_Rejects(t *testing.T) {
	e := newServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "garbage", header: "Bearer nope"},
		{name: "expired", header: "Bearer " + token(t, "user", uuid.New(), time.Now().Add(-time.Minute))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	e := newServer(t)
	exp := time.Now().Add(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "user", uuid.New(), exp))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "admin", uuid.New(), exp))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
