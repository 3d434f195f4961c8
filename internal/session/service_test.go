package session

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/ledger"
	"github.com/mkravch/media_library/internal/models"
	"github.com/mkravch/media_library/internal/tokens"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.BlocklistEntry{},
	))

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := &tokens.Issuer{
		AccessSecret:  []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           clk.Now,
	}

	svc := &Service{
		DB:     db,
		Issuer: issuer,
		Ledger: &ledger.Ledger{DB: db},
	}
	return svc, clk
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, user.Role)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "pw1", user.PasswordHash)

	_, err = svc.Register(ctx, "a@x.com", "pw1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateUser)

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLogin_Succeeds(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "a@x.com", res.User.Email)

	// the refresh record was persisted with the token's jti
	claims, err := svc.Issuer.DecodeRefresh(res.RefreshToken)
	require.NoError(t, err)

	record, err := svc.Ledger.LookupRefresh(ctx, claims.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.Revoked)
	assert.Equal(t, res.User.ID, record.UserID)
}

func TestLogin_InvalidCredentialsUndifferentiated(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "a@x.com", "wrong")
	_, unknownEmail := svc.Login(ctx, "nobody@x.com", "pw1")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_PersistenceFailureIssuesNoTokens(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.DB.Migrator().DropTable(&models.RefreshToken{}))

	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestLogout_BlocksAccessButNotRefresh(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	accessClaims, err := svc.Issuer.DecodeAccess(res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, accessClaims.ID))

	// the access jti is blocked even though signature and expiry still pass
	blocked, err := svc.Ledger.IsBlocked(ctx, accessClaims.ID)
	require.NoError(t, err)
	assert.True(t, blocked)
	_, err = svc.Issuer.DecodeAccess(res.AccessToken)
	require.NoError(t, err)

	// logging out twice is harmless
	require.NoError(t, svc.Logout(ctx, accessClaims.ID))

	// access revocation does not touch the refresh session
	newAccess, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
}

func TestRefresh_RevokedTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefresh(ctx, res.RefreshToken))

	_, err = svc.Refresh(ctx, res.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestRefresh_UnregisteredTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	// structurally valid token whose jti was never persisted
	raw, _, err := svc.Issuer.IssueRefresh(user.ID)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestRefresh_DeletedUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.DB.Delete(&models.User{}, user.ID).Error)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefresh_UsesCurrentRoleNotStaleClaims(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"role": models.RoleAdmin, "is_admin": true}).Error)

	newAccess, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.Issuer.DecodeAccess(newAccess)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.True(t, claims.IsAdmin)
}

func TestRefresh_TokenNotRotated(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	// the same refresh token keeps working across renewals
	for i := 0; i < 3; i++ {
		access, err := svc.Refresh(ctx, res.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, access)
	}

	var count int64
	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRefresh_ExpiredByWallClock(t *testing.T) {
	t.Parallel()

	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	// exactly at expiry the token is no longer valid
	clk.now = clk.now.Add(svc.Issuer.RefreshTTL)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestForgotPassword_NoDisclosure(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	assert.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	assert.NoError(t, svc.ForgotPassword(ctx, "nobody@x.com"))
}

func TestMe(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	got, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.Me(ctx, user.ID+100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
