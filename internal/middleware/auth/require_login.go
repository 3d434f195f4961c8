package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/media_library/internal/ledger"
	"github.com/mkravch/media_library/internal/tokens"
)

type Middleware struct {
	Issuer *tokens.Issuer
	Ledger *ledger.Ledger
}

// RequireLogin gates a route on a valid, non-blocked access token. The check
// is stateless: signature, expiry and blocklist membership are re-verified on
// every request.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Issuer.DecodeAccess(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		blocked, err := m.Ledger.IsBlocked(c.Request().Context(), claims.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "blocklist lookup failed")
		}
		if blocked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
		}

		userID, err := claims.UserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		setUserContext(c, claims, userID)
		return next(c)
	}
}
