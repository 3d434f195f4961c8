package tokens

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set carried by access tokens:
// {sub, role, is_admin, jti, exp}.
type AccessClaims struct {
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// RefreshClaims carries {sub, jti, exp} only. Role is deliberately absent:
// it is re-read from the user record at refresh time, so a role change takes
// effect without re-login.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

func (c *RefreshClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
