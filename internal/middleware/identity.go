package middleware

// identity.go holds the context keys set by JWTAuth and RequestID and the
// accessors handlers use to read them.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys.
const (
	KeyUserID    = "user_id"
	KeyRole      = "role"
	KeyTheaterID = "theater_id"
	KeyRequestID = "request_id"
)

// UserID returns the authenticated user's ID, or 0.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(KeyUserID).(uint64)
	return id
}

// Role returns the authenticated account type, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(KeyRole).(string)
	return r
}

// TheaterID returns the theater ID from the access token, 0 for platform
// admins and guests.
func TheaterID(c echo.Context) uint64 {
	id, _ := c.Get(KeyTheaterID).(uint64)
	return id
}

// GetRequestID returns the request ID assigned by the RequestID middleware.
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(KeyRequestID).(string)
	return id
}

// userKey identifies the caller for rate-limit and cache keys. It returns
// "guest" when no user is authenticated.
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
