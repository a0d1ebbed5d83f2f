package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
)

type userStore interface {
	Create(ctx context.Context, u *model.User, password string, cost int) error
	GetInTheater(ctx context.Context, theaterID, id uint64) (model.User, error)
	ListByTheater(ctx context.Context, theaterID uint64, search string, page model.Page) ([]model.User, int, error)
	Update(ctx context.Context, u *model.User) error
	SetActive(ctx context.Context, theaterID, id uint64, active bool) error
	SetPassword(ctx context.Context, id uint64, password string, cost int) error
	Delete(ctx context.Context, theaterID, id uint64) error
}

type tokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// UserHandler manages a theater's staff accounts.
type UserHandler struct {
	Users      userStore
	Roles      roleStore
	Tokens     tokenRevoker
	BcryptCost int
}

type createUserReq struct {
	Email       string  `json:"email" validate:"required,email"`
	FullName    string  `json:"full_name" validate:"required,notblank,max=150"`
	Phone       string  `json:"phone" validate:"omitempty,phone"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	AccountType string  `json:"account_type" validate:"required,oneof=THEATER_ADMIN THEATER_USER"`
	RoleID      *uint64 `json:"role_id"`
}

type updateUserReq struct {
	FullName    string  `json:"full_name" validate:"required,notblank,max=150"`
	Phone       string  `json:"phone" validate:"omitempty,phone"`
	AccountType string  `json:"account_type" validate:"required,oneof=THEATER_ADMIN THEATER_USER"`
	RoleID      *uint64 `json:"role_id"`
}

type passwordReq struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// errAdminOnly is returned when a THEATER_USER with user.manage touches a
// THEATER_ADMIN account or tries to create or promote one.
var errAdminOnly = echo.NewHTTPError(http.StatusForbidden, "only theater admins may manage admin accounts")

// guardAdmin rejects THEATER_USER callers acting on admin accounts.
func guardAdmin(c echo.Context, accountTypes ...string) error {
	if middleware.Role(c) != model.AccountTheaterUser {
		return nil
	}
	for _, t := range accountTypes {
		if t == model.AccountTheaterAdmin {
			return errAdminOnly
		}
	}
	return nil
}

// target loads the addressed user and applies guardAdmin to it.
func (h *UserHandler) target(ctx context.Context, c echo.Context, id uint64) (model.User, error) {
	u, err := h.Users.GetInTheater(ctx, theaterParam(c), id)
	if err != nil {
		return model.User{}, err
	}
	return u, guardAdmin(c, u.AccountType)
}

// checkRole enforces that THEATER_USER accounts carry a role of the same
// theater and that admins carry none.
func (h *UserHandler) checkRole(ctx context.Context, theaterID uint64, accountType string, roleID *uint64) (*uint64, error) {
	if accountType == model.AccountTheaterAdmin {
		return nil, nil
	}
	if roleID == nil || *roleID == 0 {
		return nil, badRequest("role_id is required for THEATER_USER")
	}
	if _, err := h.Roles.Get(ctx, theaterID, *roleID); err != nil {
		return nil, err
	}
	return roleID, nil
}

// List: GET /v1/theaters/:theaterId/users?search=&page=&size=
func (h *UserHandler) List(c echo.Context) error {
	page := pageFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, total, err := h.Users.ListByTheater(ctx, theaterParam(c), c.QueryParam("search"), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.NewPageResult(users, total, page))
}

// Create: POST /v1/theaters/:theaterId/users
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := guardAdmin(c, req.AccountType); err != nil {
		return err
	}
	tid := theaterParam(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	roleID, err := h.checkRole(ctx, tid, req.AccountType, req.RoleID)
	if err != nil {
		return err
	}
	u := &model.User{
		TheaterID:   &tid,
		RoleID:      roleID,
		Email:       req.Email,
		FullName:    strings.TrimSpace(req.FullName),
		Phone:       req.Phone,
		AccountType: req.AccountType,
		IsActive:    true,
	}
	if err := h.Users.Create(ctx, u, req.Password, h.BcryptCost); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Get: GET /v1/theaters/:theaterId/users/:id
func (h *UserHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.GetInTheater(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Update: PUT /v1/theaters/:theaterId/users/:id
func (h *UserHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tid := theaterParam(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.target(ctx, c, id)
	if err != nil {
		return err
	}
	if err := guardAdmin(c, req.AccountType); err != nil {
		return err
	}
	if self, _ := getUserID(c); self == id && req.AccountType != u.AccountType {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot change your own account type"})
	}
	roleID, err := h.checkRole(ctx, tid, req.AccountType, req.RoleID)
	if err != nil {
		return err
	}
	u.FullName = strings.TrimSpace(req.FullName)
	u.Phone = req.Phone
	u.AccountType = req.AccountType
	u.RoleID = roleID
	if err := h.Users.Update(ctx, &u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// SetActive: PATCH /v1/theaters/:theaterId/users/:id/active. Deactivating
// a user also revokes its sessions.
func (h *UserHandler) SetActive(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req activeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if self, _ := getUserID(c); self == id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot change your own status"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.target(ctx, c, id); err != nil {
		return err
	}
	if err := h.Users.SetActive(ctx, theaterParam(c), id, *req.IsActive); err != nil {
		return err
	}
	if !*req.IsActive {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.IsActive})
}

// ResetPassword: PUT /v1/theaters/:theaterId/users/:id/password
func (h *UserHandler) ResetPassword(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.target(ctx, c, id); err != nil {
		return err
	}
	if err := h.Users.SetPassword(ctx, id, req.Password, h.BcryptCost); err != nil {
		return err
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete: DELETE /v1/theaters/:theaterId/users/:id
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if self, _ := getUserID(c); self == id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot delete yourself"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.target(ctx, c, id); err != nil {
		return err
	}
	if err := h.Users.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
