package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// TheaterParam is the route parameter naming the theater a request targets.
const TheaterParam = "theaterId"

// ParamTheaterID parses the :theaterId route parameter.
func ParamTheaterID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(TheaterParam), 10, 64)
	return id, err == nil && id > 0
}

// TenantScope rejects requests whose :theaterId differs from the token's
// theater. SUPER_ADMIN may address any theater.
func TenantScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := ParamTheaterID(c)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid theater id"})
			}
			if Role(c) != model.AccountSuperAdmin && TheaterID(c) != id {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
