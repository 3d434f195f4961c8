package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/ledger"
	"github.com/mkravch/media_library/internal/models"
	"github.com/mkravch/media_library/internal/tokens"
)

func newTestMiddleware(t *testing.T) (*Middleware, *time.Time) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.BlocklistEntry{}, &models.RefreshToken{}))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &now

	issuer := &tokens.Issuer{
		AccessSecret:  []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           func() time.Time { return *clk },
	}

	return &Middleware{Issuer: issuer, Ledger: &ledger.Ledger{DB: db}}, clk
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, token string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var inner echo.Context
	handler := mw(func(c echo.Context) error {
		inner = c
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	return rec, inner, err
}

func TestRequireLogin_ValidToken(t *testing.T) {
	t.Parallel()

	mw, _ := newTestMiddleware(t)
	token, claims, err := mw.Issuer.IssueAccess(42, models.RoleEmployee, false)
	require.NoError(t, err)

	rec, inner, err := invoke(t, mw.RequireLogin, token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, inner)
	assert.Equal(t, uint(42), UserID(inner))
	assert.Equal(t, models.RoleEmployee, inner.Get("role"))
	assert.False(t, IsAdmin(inner))
	assert.Equal(t, claims.ID, JTI(inner))
}

func TestRequireLogin_MissingToken(t *testing.T) {
	t.Parallel()

	mw, _ := newTestMiddleware(t)
	_, _, err := invoke(t, mw.RequireLogin, "")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLogin_BlockedJTI(t *testing.T) {
	t.Parallel()

	mw, _ := newTestMiddleware(t)
	token, claims, err := mw.Issuer.IssueAccess(42, models.RoleEmployee, false)
	require.NoError(t, err)

	// before blocking the token passes
	_, _, err = invoke(t, mw.RequireLogin, token)
	require.NoError(t, err)

	require.NoError(t, mw.Ledger.BlockAccess(context.Background(), claims.ID))

	// signature and expiry are still fine, the blocklist alone rejects it
	_, _, err = invoke(t, mw.RequireLogin, token)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLogin_ExpiredToken(t *testing.T) {
	t.Parallel()

	mw, clk := newTestMiddleware(t)
	token, _, err := mw.Issuer.IssueAccess(42, models.RoleEmployee, false)
	require.NoError(t, err)

	*clk = clk.Add(mw.Issuer.AccessTTL)

	_, _, err = invoke(t, mw.RequireLogin, token)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestAdminOnly(t *testing.T) {
	t.Parallel()

	mw, _ := newTestMiddleware(t)

	employee, _, err := mw.Issuer.IssueAccess(1, models.RoleEmployee, false)
	require.NoError(t, err)
	admin, _, err := mw.Issuer.IssueAccess(2, models.RoleAdmin, true)
	require.NoError(t, err)

	_, _, err = invoke(t, mw.AdminOnly, employee)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusForbidden, he.Code)

	rec, _, err := invoke(t, mw.AdminOnly, admin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
