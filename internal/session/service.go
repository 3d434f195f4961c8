// Package session orchestrates the token lifecycle: login verifies
// credentials and issues an access/refresh pair, refresh mints a new access
// token against the revocation ledger, logout blocks the presented access
// token's jti. There is no stored session state; every authenticated request
// re-validates expiry and blocklist membership.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/events"
	"github.com/mkravch/media_library/internal/hash"
	"github.com/mkravch/media_library/internal/ledger"
	"github.com/mkravch/media_library/internal/logging"
	"github.com/mkravch/media_library/internal/models"
	"github.com/mkravch/media_library/internal/tokens"
)

type Service struct {
	DB       *gorm.DB
	Issuer   *tokens.Issuer
	Ledger   *ledger.Ledger
	Producer *events.Producer
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         models.PublicUser
}

// Register creates a user with the employee role. A duplicate email fails
// with ErrDuplicateUser and performs no side effects.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "session.register")

	var existing models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateUser
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleEmployee,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	s.publish(ctx, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return &user, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// refresh record is persisted in the same transaction that decides success:
// if persistence fails, no tokens are reported issued.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	accessToken, _, err := s.Issuer.IssueAccess(user.ID, user.Role, user.IsAdmin)
	if err != nil {
		l.Error("login failed", "reason", "signing", "error", err)
		return nil, err
	}

	refreshToken, refreshClaims, err := s.Issuer.IssueRefresh(user.ID)
	if err != nil {
		l.Error("login failed", "reason", "signing", "error", err)
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Ledger.WithTx(tx).RegisterRefresh(ctx, refreshClaims.ID, user.ID, refreshClaims.ExpiresAt.Time)
	})
	if err != nil {
		l.Error("login failed", "reason", "persist refresh record", "error", err)
		return nil, err
	}

	s.publish(ctx, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Public(),
	}, nil
}

// Refresh validates the presented refresh token against the ledger and mints
// a new access token from the user's current role and admin flag, never from
// the token's stale claims. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.Issuer.DecodeRefresh(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOrRevokedToken, err)
	}

	record, err := s.Ledger.LookupRefresh(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if record == nil || record.Revoked {
		return "", ErrInvalidOrRevokedToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidOrRevokedToken)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	accessToken, _, err := s.Issuer.IssueAccess(user.ID, user.Role, user.IsAdmin)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout blocks the access token's jti. The token stays structurally valid
// until its natural expiry, but every authorization check rejects it once the
// jti is on the blocklist. Refresh tokens are untouched.
func (s *Service) Logout(ctx context.Context, jti string) error {
	return s.Ledger.BlockAccess(ctx, jti)
}

// RevokeRefresh flips the revoked flag on the refresh record for the given
// raw token, ending the session's ability to mint new access tokens.
func (s *Service) RevokeRefresh(ctx context.Context, refreshToken string) error {
	claims, err := s.Issuer.DecodeRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrRevokedToken, err)
	}
	if err := s.Ledger.RevokeRefresh(ctx, claims.ID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrInvalidOrRevokedToken
		}
		return err
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ForgotPassword never discloses whether the email is registered. Actual mail
// delivery is an external collaborator; nothing is sent from here.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "session.forgot_password")

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		l.Info("password reset requested", "user_id", user.ID)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic, key string, event map[string]interface{}) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.Producer.PublishEvent(pubCtx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("kafka publish error", "topic", topic, "error", err)
	}
}
