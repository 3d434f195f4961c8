package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/media_library/internal/tokens"
)

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims, userID uint) {
	c.Set("userID", userID)
	c.Set("role", claims.Role)
	c.Set("isAdmin", claims.IsAdmin)
	c.Set("jti", claims.ID)
}

func UserID(c echo.Context) uint {
	if v, ok := c.Get("userID").(uint); ok {
		return v
	}
	return 0
}

func IsAdmin(c echo.Context) bool {
	if v, ok := c.Get("isAdmin").(bool); ok {
		return v
	}
	return false
}

func JTI(c echo.Context) string {
	if v, ok := c.Get("jti").(string); ok {
		return v
	}
	return ""
}
