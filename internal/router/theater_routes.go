package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
)

// RegisterTheater registers the tenant endpoints under
// /v1/theaters/:theaterId. Every route requires a token of that theater
// (or SUPER_ADMIN) and the permission named next to it. Successful writes
// invalidate the theater's cache namespace.
func RegisterTheater(e *echo.Echo, h Handlers, g Guards) {
	t := e.Group("/v1/theaters/:"+middleware.TheaterParam,
		middleware.JWTAuth(g.JWTSecret),
		middleware.RequireRole(model.AccountSuperAdmin, model.AccountTheaterAdmin, model.AccountTheaterUser),
		middleware.TenantScope(),
		middleware.NewTokenBucket(g.RateLimit, g.Redis, g.Log),
		middleware.InvalidateOnWrite(g.Cache, g.Log),
	)

	// ---- Profile ----
	t.GET("", h.Theaters.Get)
	t.PUT("", h.Theaters.Update, g.perm(model.PermTheaterManage))
	t.GET("/dashboard", h.Dashboard.Theater, g.perm(model.PermDashboardView))

	// ---- Roles ----
	roles := t.Group("/roles", g.perm(model.PermRoleManage))
	roles.GET("", h.Roles.List, g.cached())
	roles.POST("", h.Roles.Create)
	roles.GET("/:id", h.Roles.Get)
	roles.PUT("/:id", h.Roles.Update)
	roles.DELETE("/:id", h.Roles.Delete)

	// ---- Users ----
	users := t.Group("/users", g.perm(model.PermUserManage))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.PATCH("/:id/active", h.Users.SetActive)
	users.PUT("/:id/password", h.Users.ResetPassword)
	users.DELETE("/:id", h.Users.Delete)

	// ---- QR code names and QR codes ----
	qrPerm := g.perm(model.PermQRCodeManage)
	t.GET("/qr-names", h.QRCodes.ListNames, qrPerm, g.cached())
	t.POST("/qr-names", h.QRCodes.CreateName, qrPerm)
	t.GET("/qr-names/:id", h.QRCodes.GetName, qrPerm)
	t.PUT("/qr-names/:id", h.QRCodes.UpdateName, qrPerm)
	t.DELETE("/qr-names/:id", h.QRCodes.DeleteName, qrPerm)
	t.GET("/qrcodes", h.QRCodes.List, qrPerm, g.cached())
	t.POST("/qrcodes/single", h.QRCodes.CreateSingle, qrPerm)
	t.POST("/qrcodes/screen/preview", h.QRCodes.PreviewScreen, qrPerm)
	t.POST("/qrcodes/screen", h.QRCodes.GenerateScreen, qrPerm)
	t.GET("/qrcodes/:id", h.QRCodes.Get, qrPerm)
	t.PATCH("/qrcodes/:id/active", h.QRCodes.SetActive, qrPerm)
	t.DELETE("/qrcodes/:id", h.QRCodes.Delete, qrPerm)
	t.GET("/qrcodes/:id/image.png", h.QRCodes.Image, qrPerm)
	t.POST("/qrcodes/:id/image", h.QRCodes.UploadImage, qrPerm)

	// ---- Banners ----
	banners := t.Group("/banners", g.perm(model.PermBannerManage))
	banners.GET("", h.Banners.List, g.cached())
	banners.POST("", h.Banners.Create)
	banners.PUT("/order", h.Banners.Reorder)
	banners.GET("/:id", h.Banners.Get)
	banners.PUT("/:id", h.Banners.Update)
	banners.PATCH("/:id/active", h.Banners.SetActive)
	banners.DELETE("/:id", h.Banners.Delete)

	// ---- Catalogue ----
	catPerm := g.perm(model.PermProductManage)
	t.GET("/product-types", h.Products.ListTypes, catPerm, g.cached())
	t.POST("/product-types", h.Products.CreateType, catPerm)
	t.GET("/product-types/:id", h.Products.GetType, catPerm)
	t.PUT("/product-types/:id", h.Products.UpdateType, catPerm)
	t.PATCH("/product-types/:id/active", h.Products.SetTypeActive, catPerm)
	t.DELETE("/product-types/:id", h.Products.DeleteType, catPerm)
	t.GET("/products", h.Products.List, catPerm, g.cached())
	t.POST("/products", h.Products.Create, catPerm)
	t.GET("/products/:id", h.Products.Get, catPerm)
	t.PUT("/products/:id", h.Products.Update, catPerm)
	t.PATCH("/products/:id/active", h.Products.SetActive, catPerm)
	t.PATCH("/products/:id/stock", h.Products.AdjustStock, catPerm)
	t.DELETE("/products/:id", h.Products.Delete, catPerm)

	// ---- Orders ----
	t.GET("/orders", h.Orders.List, g.perm(model.PermOrderView))
	t.GET("/orders/:id", h.Orders.Get, g.perm(model.PermOrderView))
	t.POST("/orders", h.Orders.Create, g.perm(model.PermOrderManage))
	t.PATCH("/orders/:id/status", h.Orders.UpdateStatus, g.perm(model.PermOrderManage))

	// ---- Uploads and SMS ----
	// These act for the token's theater and carry no :theaterId.
	account := []echo.MiddlewareFunc{
		middleware.JWTAuth(g.JWTSecret),
		middleware.RequireRole(model.AccountSuperAdmin, model.AccountTheaterAdmin, model.AccountTheaterUser),
		middleware.NewTokenBucket(g.RateLimit, g.Redis, g.Log),
	}
	e.POST("/v1/upload/image", h.Uploads.Image, append(account, g.perm(model.PermUploadCreate))...)
	e.POST("/v1/sms/send", h.SMS.Send, append(account, g.perm(model.PermSMSSend))...)
}
