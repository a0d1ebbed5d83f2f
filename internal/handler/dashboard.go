package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/repository"
)

type statsSource interface {
	Theater(ctx context.Context, theaterID uint64, dayStart time.Time) (repository.TheaterStats, error)
	Platform(ctx context.Context, dayStart time.Time) (repository.PlatformStats, error)
}

// DashboardHandler serves the theater and platform dashboards.
type DashboardHandler struct {
	Stats statsSource
	Now   func() time.Time
}

func (h *DashboardHandler) dayStart() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return now().UTC().Truncate(24 * time.Hour)
}

// Theater: GET /v1/theaters/:theaterId/dashboard
func (h *DashboardHandler) Theater(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Stats.Theater(ctx, theaterParam(c), h.dayStart())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Platform: GET /v1/admin/stats
func (h *DashboardHandler) Platform(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Stats.Platform(ctx, h.dayStart())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}
