package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/notify"
	"github.com/iliyamo/theater-canteen/internal/repository"
	"github.com/iliyamo/theater-canteen/internal/seatmap"
	"github.com/iliyamo/theater-canteen/internal/service"
	"github.com/iliyamo/theater-canteen/internal/storage"
	"github.com/iliyamo/theater-canteen/internal/utils"
	"github.com/iliyamo/theater-canteen/internal/validation"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{repository.ErrNotFound, http.StatusNotFound},
	{repository.ErrForbidden, http.StatusForbidden},
	{repository.ErrConflict, http.StatusConflict},
	{repository.ErrDuplicate, http.StatusConflict},
	{repository.ErrEmailExists, http.StatusConflict},
	{repository.ErrInsufficientStock, http.StatusConflict},
	{model.ErrInvalidTransition, http.StatusUnprocessableEntity},
	{service.ErrInvalidOrder, http.StatusBadRequest},
	{service.ErrUnavailable, http.StatusConflict},
	{seatmap.ErrInvalidRow, http.StatusBadRequest},
	{seatmap.ErrInvalidRange, http.StatusBadRequest},
	{seatmap.ErrInvalidSeat, http.StatusBadRequest},
	{seatmap.ErrEmpty, http.StatusBadRequest},
	{seatmap.ErrTooMany, http.StatusBadRequest},
	{utils.ErrPasswordTooLong, http.StatusBadRequest},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType},
	{storage.ErrEmptyFile, http.StatusBadRequest},
	{storage.ErrNotConfigured, http.StatusServiceUnavailable},
	{notify.ErrOTPCooldown, http.StatusTooManyRequests},
	{notify.ErrOTPTooMany, http.StatusTooManyRequests},
	{notify.ErrOTPExpired, http.StatusBadRequest},
	{notify.ErrOTPMismatch, http.StatusBadRequest},
	{notify.ErrOTPUnavailable, http.StatusServiceUnavailable},
}

// statusOf maps a domain error to its HTTP status, 0 when unknown.
func statusOf(err error) int {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	var se *notify.StatusError
	if errors.As(err, &se) {
		return http.StatusBadGateway
	}
	return 0
}

// ErrorHandler is the echo.HTTPErrorHandler for the API. Domain errors get
// their mapped status and message, validation errors a field map, and
// anything else is logged and answered with a generic 500.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		var body any

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body = echo.Map{"error": msg}
			} else {
				body = echo.Map{"error": he.Message}
			}
		case validation.Fields(err) != nil:
			code = http.StatusBadRequest
			body = echo.Map{"error": "validation failed", "fields": validation.Fields(err)}
		case statusOf(err) != 0:
			code = statusOf(err)
			body = echo.Map{"error": err.Error()}
		default:
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Uint64("user_id", middleware.UserID(c)),
				zap.Error(err))
			body = echo.Map{"error": http.StatusText(http.StatusInternalServerError)}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
