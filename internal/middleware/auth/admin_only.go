package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminOnly is RequireLogin plus an is_admin claim check.
func (m *Middleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireLogin(func(c echo.Context) error {
		if !IsAdmin(c) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}
