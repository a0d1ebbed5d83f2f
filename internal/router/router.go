// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/handler"
	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/validation"
)

// Guards holds what the route middlewares need.
type Guards struct {
	JWTSecret       string
	Perms           middleware.PermissionSource
	Cache           *cache.Cache
	CacheCfg        config.CacheConfig
	Redis           *redis.Client // nil disables rate limiting
	RateLimit       config.RateLimitConfig
	PublicRateLimit config.RateLimitConfig
	Log             *zap.Logger
}

func (g Guards) perm(key string) echo.MiddlewareFunc {
	return middleware.RequirePermission(g.Perms, key, g.Log)
}

func (g Guards) cached() echo.MiddlewareFunc {
	return middleware.ResponseCache(g.CacheCfg, g.Cache)
}

// Handlers bundles every HTTP handler.
type Handlers struct {
	Auth      *handler.AuthHandler
	Ready     *handler.ReadyHandler
	Theaters  *handler.TheaterHandler
	Roles     *handler.RoleHandler
	Users     *handler.UserHandler
	QRCodes   *handler.QRCodeHandler
	Banners   *handler.BannerHandler
	Products  *handler.ProductHandler
	Orders    *handler.OrderHandler
	Public    *handler.PublicHandler
	Uploads   *handler.UploadHandler
	SMS       *handler.SMSHandler
	Dashboard *handler.DashboardHandler
}

// New returns an echo instance with the validator, error handler and
// request middlewares installed and every route registered.
func New(h Handlers, g Guards) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.EchoValidator{}
	e.HTTPErrorHandler = handler.ErrorHandler(g.Log)
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(g.Log))

	RegisterRoutes(e, h.Ready)
	RegisterAuth(e, h.Auth, g)
	RegisterAdmin(e, h, g)
	RegisterTheater(e, h, g)
	RegisterPublic(e, h, g)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// caller endpoints under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	auth := e.Group("/v1/auth", middleware.NewTokenBucket(g.PublicRateLimit, g.Redis, g.Log))
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/refresh-access", a.RefreshAccess)
	auth.POST("/logout", a.Logout)

	v1 := e.Group("/v1",
		middleware.JWTAuth(g.JWTSecret),
		middleware.RequireRole(model.AccountSuperAdmin, model.AccountTheaterAdmin, model.AccountTheaterUser),
	)
	v1.GET("/me", a.Me)
	v1.GET("/permissions", handler.Permissions)
}
