package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

// RequireRole aborts with 403 unless the account type stored by JWTAuth is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// PermissionSource returns the permission keys a THEATER_USER holds.
type PermissionSource interface {
	UserPermissions(ctx context.Context, theaterID, userID uint64) ([]string, error)
}

// RequirePermission lets SUPER_ADMIN and THEATER_ADMIN through and lets a
// THEATER_USER through when its active role grants key.
func RequirePermission(src PermissionSource, key string, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch Role(c) {
			case model.AccountSuperAdmin, model.AccountTheaterAdmin:
				return next(c)
			case model.AccountTheaterUser:
			default:
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			perms, err := src.UserPermissions(c.Request().Context(), TheaterID(c), UserID(c))
			if err != nil {
				log.Error("permission lookup failed", zap.Uint64("user_id", UserID(c)), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			for _, p := range perms {
				if p == key {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "missing permission " + key})
		}
	}
}

type userLookup interface {
	GetInTheater(ctx context.Context, theaterID, id uint64) (model.User, error)
}

type roleLookup interface {
	Get(ctx context.Context, theaterID, id uint64) (model.Role, error)
}

// CachedPermissions resolves a user's permissions through its role and
// memoizes the result in the theater's cache namespace, so any write to
// the theater drops it.
type CachedPermissions struct {
	Users userLookup
	Roles roleLookup
	Cache *cache.Cache
}

func (p *CachedPermissions) UserPermissions(ctx context.Context, theaterID, userID uint64) ([]string, error) {
	key := "perm:" + strconv.FormatUint(userID, 10)
	return cache.GetOrLoadJSON(ctx, p.Cache, cache.TheaterNamespace(theaterID), key,
		func(ctx context.Context) ([]string, error) {
			return p.load(ctx, theaterID, userID)
		})
}

func (p *CachedPermissions) load(ctx context.Context, theaterID, userID uint64) ([]string, error) {
	none := []string{}
	u, err := p.Users.GetInTheater(ctx, theaterID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return none, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return none, nil
	}
	if u.AccountType == model.AccountTheaterAdmin {
		return model.AllPermissionKeys(), nil
	}
	if u.RoleID == nil {
		return none, nil
	}
	r, err := p.Roles.Get(ctx, theaterID, *u.RoleID)
	if errors.Is(err, repository.ErrNotFound) {
		return none, nil
	}
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return none, nil
	}
	return r.Permissions, nil
}
