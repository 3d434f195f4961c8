package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer mints and decodes the two token kinds. Decode verifies signature and
// expiry only; blocklist / revocation lookups are the caller's concern.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now is the clock source, time.Now when nil. Expiry is strict:
	// a token is valid iff now < exp.
	Now func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) IssueAccess(userID uint, role string, isAdmin bool) (string, *AccessClaims, error) {
	claims := &AccessClaims{
		Role:    role,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.AccessSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

func (i *Issuer) IssueRefresh(userID uint) (string, *RefreshClaims, error) {
	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.RefreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.RefreshSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, claims, nil
}

func (i *Issuer) DecodeAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.decode(raw, &claims, i.AccessSecret); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (i *Issuer) DecodeRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.decode(raw, &claims, i.RefreshSecret); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (i *Issuer) decode(raw string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
