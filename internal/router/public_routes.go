package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
)

// RegisterPublic registers the guest endpoints used after scanning a QR
// code. They carry no token and share the stricter public rate limit.
func RegisterPublic(e *echo.Echo, h Handlers, g Guards) {
	p := e.Group("/v1/public", middleware.NewTokenBucket(g.PublicRateLimit, g.Redis, g.Log))
	p.GET("/menu/:code", h.Public.Menu)
	p.POST("/orders", h.Public.PlaceOrder)
	p.GET("/orders/track", h.Public.Track)
	p.POST("/otp/send", h.Public.SendOTP)
	p.POST("/otp/verify", h.Public.VerifyOTP)
	p.GET("/theaters/:"+middleware.TheaterParam+"/banners", h.Banners.Visible)
}
