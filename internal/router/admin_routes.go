package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
)

// RegisterAdmin registers the SUPER_ADMIN endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h Handlers, g Guards) {
	a := e.Group("/v1/admin",
		middleware.JWTAuth(g.JWTSecret),
		middleware.RequireRole(model.AccountSuperAdmin),
		middleware.NewTokenBucket(g.RateLimit, g.Redis, g.Log),
		middleware.InvalidateOnWrite(g.Cache, g.Log),
	)

	// ---- Theaters ----
	a.GET("/theaters", h.Theaters.List, g.cached())
	a.POST("/theaters", h.Theaters.Create)
	a.GET("/theaters/:theaterId", h.Theaters.Get)
	a.PUT("/theaters/:theaterId", h.Theaters.Update)
	a.PATCH("/theaters/:theaterId/active", h.Theaters.SetActive)
	a.DELETE("/theaters/:theaterId", h.Theaters.Delete)

	// ---- Platform banners ----
	a.GET("/banners", h.Banners.List, g.cached())
	a.POST("/banners", h.Banners.Create)
	a.PUT("/banners/order", h.Banners.Reorder)
	a.GET("/banners/:id", h.Banners.Get)
	a.PUT("/banners/:id", h.Banners.Update)
	a.PATCH("/banners/:id/active", h.Banners.SetActive)
	a.DELETE("/banners/:id", h.Banners.Delete)

	a.GET("/stats", h.Dashboard.Platform)
}
