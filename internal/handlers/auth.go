package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/media_library/internal/logging"
	mwauth "github.com/mkravch/media_library/internal/middleware/auth"
	"github.com/mkravch/media_library/internal/session"
)

type AuthHandler struct {
	Svc *session.Service
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	if _, err := h.Svc.Register(ctx, req.Email, req.Password); err != nil {
		if errors.Is(err, session.ErrDuplicateUser) {
			return echo.NewHTTPError(http.StatusBadRequest, "user already exists")
		}
		logging.FromContext(ctx).Error("register failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing email or password")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		logging.FromContext(ctx).Error("login failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"user":          res.User,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token is required")
	}

	accessToken, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidOrRevokedToken):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or revoked refresh token")
		case errors.Is(err, session.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		logging.FromContext(ctx).Error("refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
	})
}

// Logout blocks the jti of the access token that authenticated this call. The
// middleware already validated signature, expiry and blocklist state.
func (h *AuthHandler) Logout(c echo.Context) error {
	jti := mwauth.JTI(c)
	if jti == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	if err := h.Svc.Logout(c.Request().Context(), jti); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "successfully logged out",
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.Svc.Me(c.Request().Context(), mwauth.UserID(c))
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, user.Public())
}

// ForgotPassword answers identically whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.Svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "request failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "If this email is registered, you will receive a reset link shortly.",
	})
}
