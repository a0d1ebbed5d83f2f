// Package handler contains the HTTP handlers of the canteen API.
package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
)

const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated user's ID.
func getUserID(c echo.Context) (uint64, error) {
	if id := middleware.UserID(c); id != 0 {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// theaterParam returns :theaterId. TenantScope has already validated it.
func theaterParam(c echo.Context) uint64 {
	id, _ := middleware.ParamTheaterID(c)
	return id
}

func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

// bind decodes the request body into v and validates it.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return badRequest("invalid request body")
	}
	return c.Validate(v)
}

func pageFrom(c echo.Context) model.Page {
	n, _ := strconv.Atoi(c.QueryParam("page"))
	s, _ := strconv.Atoi(c.QueryParam("size"))
	return model.Page{Number: n, Size: s}.Normalize()
}

func boolQuery(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest("invalid " + name)
	}
	return &b, nil
}

func uintQuery(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return n, nil
}

// activeReq is the body of every toggle endpoint.
type activeReq struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
