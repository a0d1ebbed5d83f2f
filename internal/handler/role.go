package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
)

type roleStore interface {
	Create(ctx context.Context, role *model.Role) error
	Get(ctx context.Context, theaterID, id uint64) (model.Role, error)
	List(ctx context.Context, theaterID uint64) ([]model.Role, error)
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, theaterID, id uint64) error
}

// RoleHandler manages a theater's roles.
type RoleHandler struct {
	Roles roleStore
}

type roleReq struct {
	Name        string   `json:"name" validate:"required,notblank,max=100"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"permission"`
	IsActive    *bool    `json:"is_active"`
}

// dedupe keeps the first occurrence of every key.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Permissions: GET /v1/permissions
func Permissions(c echo.Context) error {
	return c.JSON(http.StatusOK, model.Permissions())
}

// List: GET /v1/theaters/:theaterId/roles
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	roles, err := h.Roles.List(ctx, theaterParam(c))
	if err != nil {
		return err
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return c.JSON(http.StatusOK, roles)
}

// Create: POST /v1/theaters/:theaterId/roles
func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	role := &model.Role{
		TheaterID:   theaterParam(c),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Permissions: dedupe(req.Permissions),
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roles.Create(ctx, role); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

// Get: GET /v1/theaters/:theaterId/roles/:id
func (h *RoleHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

// Update: PUT /v1/theaters/:theaterId/roles/:id
func (h *RoleHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	role.Name = strings.TrimSpace(req.Name)
	role.Description = strings.TrimSpace(req.Description)
	role.Permissions = dedupe(req.Permissions)
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	if err := h.Roles.Update(ctx, &role); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

// Delete: DELETE /v1/theaters/:theaterId/roles/:id
func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roles.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
