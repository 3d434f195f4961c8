// Package ledger records revoked access-token jtis (blocklist) and the
// lifecycle of persisted refresh-token records.
package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/models"
)

var ErrNotFound = errors.New("refresh token not found")

type Ledger struct {
	DB *gorm.DB
}

// WithTx returns a ledger bound to the given transaction handle.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{DB: tx}
}

// BlockAccess inserts a blocklist entry for the jti. Idempotent: blocking an
// already-blocked jti leaves a single effective entry and returns nil.
func (l *Ledger) BlockAccess(ctx context.Context, jti string) error {
	entry := models.BlocklistEntry{JTI: jti}
	return l.DB.WithContext(ctx).
		Where("jti = ?", jti).
		FirstOrCreate(&entry).Error
}

func (l *Ledger) IsBlocked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := l.DB.WithContext(ctx).Model(&models.BlocklistEntry{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RegisterRefresh persists a fresh refresh-token record. A duplicate jti is a
// programming error (jtis are fresh random identifiers) and surfaces as the
// store's uniqueness violation.
func (l *Ledger) RegisterRefresh(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	record := models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return l.DB.WithContext(ctx).Create(&record).Error
}

func (l *Ledger) RevokeRefresh(ctx context.Context, jti string) error {
	result := l.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LookupRefresh returns the record for the jti, or nil when absent.
func (l *Ledger) LookupRefresh(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var record models.RefreshToken
	if err := l.DB.WithContext(ctx).Where("jti = ?", jti).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
