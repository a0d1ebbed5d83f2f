package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/theater-canteen/internal/cache"
)

// Health is the liveness endpoint used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyHandler reports whether the database and Redis answer, plus cache
// counters.
type ReadyHandler struct {
	DB    pinger
	Redis *redis.Client
	Cache *cache.Cache
}

func (h *ReadyHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := echo.Map{"database": "ok", "redis": "disabled"}
	if err := h.DB.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}
	resp := echo.Map{"checks": checks}
	if h.Cache != nil {
		resp["cache"] = h.Cache.Stats()
	}
	return c.JSON(status, resp)
}
