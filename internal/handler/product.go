package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
)

type productTypeStore interface {
	Create(ctx context.Context, t *model.ProductType) error
	Get(ctx context.Context, theaterID, id uint64) (model.ProductType, error)
	List(ctx context.Context, theaterID uint64, activeOnly bool) ([]model.ProductType, error)
	Update(ctx context.Context, t *model.ProductType) error
	SetActive(ctx context.Context, theaterID, id uint64, active bool) error
	Delete(ctx context.Context, theaterID, id uint64) error
}

type productStore interface {
	Create(ctx context.Context, p *model.Product) error
	Get(ctx context.Context, theaterID, id uint64) (model.Product, error)
	List(ctx context.Context, theaterID uint64, f model.ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, p *model.Product) error
	SetActive(ctx context.Context, theaterID, id uint64, active bool) error
	AdjustStock(ctx context.Context, theaterID, id uint64, delta int) (int, error)
	Delete(ctx context.Context, theaterID, id uint64) error
}

// ProductHandler manages the canteen catalogue of a theater.
type ProductHandler struct {
	Types    productTypeStore
	Products productStore
}

type productTypeReq struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=255"`
	ImageURL    string `json:"image_url" validate:"omitempty,url,max=500"`
	SortOrder   int    `json:"sort_order" validate:"min=0"`
	IsActive    *bool  `json:"is_active"`
}

type productReq struct {
	ProductTypeID uint64 `json:"product_type_id" validate:"required"`
	Name          string `json:"name" validate:"required,notblank,max=150"`
	Description   string `json:"description" validate:"max=500"`
	PriceCents    uint32 `json:"price_cents" validate:"required,max=10000000"`
	Stock         *int   `json:"stock" validate:"omitempty,min=0"`
	ImageURL      string `json:"image_url" validate:"omitempty,url,max=500"`
	IsVeg         bool   `json:"is_veg"`
	IsActive      *bool  `json:"is_active"`
}

type stockReq struct {
	Delta int `json:"delta" validate:"required,min=-100000,max=100000"`
}

// ----- product types -----

// ListTypes: GET /v1/theaters/:theaterId/product-types?active=true
func (h *ProductHandler) ListTypes(c echo.Context) error {
	active, err := boolQuery(c, "active")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Types.List(ctx, theaterParam(c), active != nil && *active)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.ProductType{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) CreateType(c echo.Context) error {
	var req productTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	t := &model.ProductType{
		TheaterID:   theaterParam(c),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Types.Create(ctx, t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *ProductHandler) GetType(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Types.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *ProductHandler) UpdateType(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req productTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Types.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	t.Name = strings.TrimSpace(req.Name)
	t.Description = strings.TrimSpace(req.Description)
	t.ImageURL = req.ImageURL
	t.SortOrder = req.SortOrder
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.Types.Update(ctx, &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *ProductHandler) SetTypeActive(c echo.Context) error {
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
	if err := h.Types.SetActive(ctx, theaterParam(c), id, *req.IsActive); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.IsActive})
}

// DeleteType fails with 409 while the type still has products.
func (h *ProductHandler) DeleteType(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Types.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- products -----

// List: GET /v1/theaters/:theaterId/products?product_type_id=&is_active=&q=&page=&size=
func (h *ProductHandler) List(c echo.Context) error {
	typeID, err := uintQuery(c, "product_type_id")
	if err != nil {
		return err
	}
	active, err := boolQuery(c, "is_active")
	if err != nil {
		return err
	}
	f := model.ProductFilter{
		ProductTypeID: typeID,
		IsActive:      active,
		Search:        strings.TrimSpace(c.QueryParam("q")),
		Page:          pageFrom(c),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Products.List(ctx, theaterParam(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.NewPageResult(items, total, f.Page))
}

func (h *ProductHandler) Create(c echo.Context) error {
	var req productReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p := &model.Product{
		TheaterID:     theaterParam(c),
		ProductTypeID: req.ProductTypeID,
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		PriceCents:    req.PriceCents,
		Stock:         req.Stock,
		ImageURL:      req.ImageURL,
		IsVeg:         req.IsVeg,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Products.Create(ctx, p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Products.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update replaces the product's editable fields. Stock is replaced too;
// use AdjustStock for relative changes.
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req productReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Products.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	p.ProductTypeID = req.ProductTypeID
	p.Name = strings.TrimSpace(req.Name)
	p.Description = strings.TrimSpace(req.Description)
	p.PriceCents = req.PriceCents
	p.Stock = req.Stock
	p.ImageURL = req.ImageURL
	p.IsVeg = req.IsVeg
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.Products.Update(ctx, &p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) SetActive(c echo.Context) error {
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
	if err := h.Products.SetActive(ctx, theaterParam(c), id, *req.IsActive); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.IsActive})
}

// AdjustStock: PATCH /v1/theaters/:theaterId/products/:id/stock
func (h *ProductHandler) AdjustStock(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req stockReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	stock, err := h.Products.AdjustStock(ctx, theaterParam(c), id, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "stock": stock})
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Products.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
