package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
	"github.com/iliyamo/theater-canteen/internal/utils"
)

type authUsers interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	TouchLogin(ctx context.Context, id uint64, at time.Time) error
}

type authTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type theaterGetter interface {
	GetByID(ctx context.Context, id uint64) (model.Theater, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    authUsers
	Tokens   authTokens
	Theaters theaterGetter
	Perms    middleware.PermissionSource
	Log      *zap.Logger
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

var (
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errInvalidRefresh     = echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh")
	errAccountDisabled    = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errTheaterDisabled    = echo.NewHTTPError(http.StatusForbidden, "theater deactivated")
)

// checkActive rejects inactive users and users of inactive theaters.
func (h *AuthHandler) checkActive(ctx context.Context, u model.User) error {
	if !u.IsActive {
		return errAccountDisabled
	}
	if u.TheaterID == nil {
		return nil
	}
	t, err := h.Theaters.GetByID(ctx, *u.TheaterID)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return errTheaterDisabled
	}
	return nil
}

func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.AccountType, u.TheaterIDOrZero(), h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return errInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errInvalidCredentials
	}
	if err := h.checkActive(ctx, u); err != nil {
		return err
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return err
	}
	if err := h.Users.TouchLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		h.Log.Warn("record last login", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) userFromRefresh(ctx context.Context, raw string) (model.User, string, error) {
	hash := utils.HashRefreshRaw(raw)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, "", errInvalidRefresh
	}
	if err != nil {
		return model.User{}, "", err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, "", errInvalidRefresh
	}
	if err != nil {
		return model.User{}, "", err
	}
	if err := h.checkActive(ctx, u); err != nil {
		return model.User{}, "", err
	}
	return u, hash, nil
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, hash, err := h.userFromRefresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return err
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, _, err := h.userFromRefresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.AccountType, u.TheaterIDOrZero(), h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer's user when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid = claims.UserID
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid != 0 {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the caller's profile, theater and effective permissions.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	resp := echo.Map{"user": u}

	var perms []string
	switch u.AccountType {
	case model.AccountSuperAdmin, model.AccountTheaterAdmin:
		perms = model.AllPermissionKeys()
	default:
		perms, err = h.Perms.UserPermissions(ctx, u.TheaterIDOrZero(), u.ID)
		if err != nil {
			return err
		}
	}
	resp["permissions"] = perms

	if u.TheaterID != nil {
		t, err := h.Theaters.GetByID(ctx, *u.TheaterID)
		if err != nil {
			return err
		}
		resp["theater"] = t
	}
	return c.JSON(http.StatusOK, resp)
}
