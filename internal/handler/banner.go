package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
)

type bannerStore interface {
	Create(ctx context.Context, b *model.Banner) error
	Get(ctx context.Context, theaterID *uint64, id uint64) (model.Banner, error)
	List(ctx context.Context, theaterID *uint64) ([]model.Banner, error)
	ListVisible(ctx context.Context, theaterID uint64, now time.Time) ([]model.Banner, error)
	Update(ctx context.Context, b *model.Banner) error
	SetActive(ctx context.Context, theaterID *uint64, id uint64, active bool) error
	Reorder(ctx context.Context, theaterID *uint64, ids []uint64) error
	Delete(ctx context.Context, theaterID *uint64, id uint64) error
}

// BannerHandler serves both platform banners (/v1/admin/banners) and
// theater banners (/v1/theaters/:theaterId/banners). The owner is taken
// from the route.
type BannerHandler struct {
	Banners bannerStore
	Now     func() time.Time
}

type bannerReq struct {
	Title     string     `json:"title" validate:"required,notblank,max=150"`
	ImageURL  string     `json:"image_url" validate:"required,url,max=500"`
	LinkURL   string     `json:"link_url" validate:"omitempty,url,max=500"`
	SortOrder int        `json:"sort_order" validate:"min=0"`
	IsActive  *bool      `json:"is_active"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
}

type reorderReq struct {
	IDs []uint64 `json:"ids" validate:"required,min=1,max=200,unique,dive,min=1"`
}

// owner returns nil for platform routes.
func bannerOwner(c echo.Context) *uint64 {
	if id, ok := middleware.ParamTheaterID(c); ok {
		return &id
	}
	return nil
}

func (r bannerReq) window() error {
	if r.StartsAt != nil && r.EndsAt != nil && !r.EndsAt.After(*r.StartsAt) {
		return badRequest("ends_at must be after starts_at")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (h *BannerHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Banners.List(ctx, bannerOwner(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *BannerHandler) Create(c echo.Context) error {
	var req bannerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.window(); err != nil {
		return err
	}
	b := &model.Banner{
		TheaterID: bannerOwner(c),
		Title:     strings.TrimSpace(req.Title),
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		SortOrder: req.SortOrder,
		IsActive:  req.IsActive == nil || *req.IsActive,
		StartsAt:  utcPtr(req.StartsAt),
		EndsAt:    utcPtr(req.EndsAt),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Banners.Create(ctx, b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BannerHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Banners.Get(ctx, bannerOwner(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BannerHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req bannerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.window(); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Banners.Get(ctx, bannerOwner(c), id)
	if err != nil {
		return err
	}
	b.Title = strings.TrimSpace(req.Title)
	b.ImageURL = req.ImageURL
	b.LinkURL = req.LinkURL
	b.SortOrder = req.SortOrder
	b.StartsAt = utcPtr(req.StartsAt)
	b.EndsAt = utcPtr(req.EndsAt)
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := h.Banners.Update(ctx, &b); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BannerHandler) SetActive(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req activeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Banners.SetActive(ctx, bannerOwner(c), id, *req.IsActive); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.IsActive})
}

// Reorder: PUT .../banners/order with {"ids": [...]} in display order.
func (h *BannerHandler) Reorder(c echo.Context) error {
	var req reorderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Banners.Reorder(ctx, bannerOwner(c), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BannerHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Banners.Delete(ctx, bannerOwner(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Visible: GET /v1/public/theaters/:theaterId/banners
func (h *BannerHandler) Visible(c echo.Context) error {
	tid, ok := middleware.ParamTheaterID(c)
	if !ok {
		return badRequest("invalid theaterId")
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Banners.ListVisible(ctx, tid, now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
