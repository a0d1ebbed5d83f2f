package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/utils"
)

type theaterStore interface {
	Create(ctx context.Context, t *model.Theater, admin *model.User) error
	GetByID(ctx context.Context, id uint64) (model.Theater, error)
	List(ctx context.Context, f model.TheaterFilter) ([]model.Theater, int, error)
	Update(ctx context.Context, t *model.Theater) error
	SetActive(ctx context.Context, id uint64, active bool) error
	Delete(ctx context.Context, id uint64) error
}

// TheaterHandler serves platform theater management and the theater
// profile.
type TheaterHandler struct {
	Theaters   theaterStore
	BcryptCost int
}

type theaterReq struct {
	Name    string `json:"name" validate:"required,notblank,max=150"`
	Address string `json:"address" validate:"max=255"`
	City    string `json:"city" validate:"max=100"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	LogoURL string `json:"logo_url" validate:"omitempty,url"`
}

type theaterAdminReq struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,notblank"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type createTheaterReq struct {
	Name     string           `json:"name" validate:"required,notblank,max=150"`
	Address  string           `json:"address" validate:"max=255"`
	City     string           `json:"city" validate:"max=100"`
	Phone    string           `json:"phone" validate:"omitempty,phone"`
	Email    string           `json:"email" validate:"omitempty,email"`
	LogoURL  string           `json:"logo_url" validate:"omitempty,url"`
	IsActive *bool            `json:"is_active"`
	Admin    *theaterAdminReq `json:"admin"`
}

func (r theaterReq) apply(t *model.Theater) {
	t.Name = strings.TrimSpace(r.Name)
	t.Address = strings.TrimSpace(r.Address)
	t.City = strings.TrimSpace(r.City)
	t.Phone = r.Phone
	t.Email = strings.ToLower(strings.TrimSpace(r.Email))
	t.LogoURL = r.LogoURL
}

// List: GET /v1/admin/theaters?search=&is_active=&page=&size=
func (h *TheaterHandler) List(c echo.Context) error {
	active, err := boolQuery(c, "is_active")
	if err != nil {
		return err
	}
	f := model.TheaterFilter{Search: c.QueryParam("search"), IsActive: active, Page: pageFrom(c)}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Theaters.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.NewPageResult(items, total, f.Page))
}

// Create: POST /v1/admin/theaters. An optional admin block creates the
// theater's THEATER_ADMIN account in the same transaction.
func (h *TheaterHandler) Create(c echo.Context) error {
	var req createTheaterReq
	if err := bind(c, &req); err != nil {
		return err
	}
	t := &model.Theater{IsActive: true}
	theaterReq{
		Name: req.Name, Address: req.Address, City: req.City,
		Phone: req.Phone, Email: req.Email, LogoURL: req.LogoURL,
	}.apply(t)
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	var admin *model.User
	if req.Admin != nil {
		hash, err := utils.HashPassword(req.Admin.Password, h.BcryptCost)
		if err != nil {
			return err
		}
		admin = &model.User{
			Email:        req.Admin.Email,
			FullName:     strings.TrimSpace(req.Admin.FullName),
			Phone:        req.Admin.Phone,
			PasswordHash: hash,
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Theaters.Create(ctx, t, admin); err != nil {
		return err
	}
	resp := echo.Map{"theater": t}
	if admin != nil {
		resp["admin"] = admin
	}
	return c.JSON(http.StatusCreated, resp)
}

// Get: GET /v1/admin/theaters/:theaterId and GET /v1/theaters/:theaterId
func (h *TheaterHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Theaters.GetByID(ctx, theaterParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Update: PUT /v1/admin/theaters/:theaterId and PUT /v1/theaters/:theaterId
func (h *TheaterHandler) Update(c echo.Context) error {
	var req theaterReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Theaters.GetByID(ctx, theaterParam(c))
	if err != nil {
		return err
	}
	req.apply(&t)
	if err := h.Theaters.Update(ctx, &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// SetActive: PATCH /v1/admin/theaters/:theaterId/active
func (h *TheaterHandler) SetActive(c echo.Context) error {
	var req activeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Theaters.SetActive(ctx, theaterParam(c), *req.IsActive); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": theaterParam(c), "is_active": *req.IsActive})
}

// Delete: DELETE /v1/admin/theaters/:theaterId
func (h *TheaterHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Theaters.Delete(ctx, theaterParam(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
