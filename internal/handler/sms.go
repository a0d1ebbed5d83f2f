package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/notify"
)

// SMSHandler exposes the SMS gateway to staff.
type SMSHandler struct {
	SMS notify.SMSSender
}

type smsReq struct {
	To      string `json:"to" validate:"required,phone"`
	Message string `json:"message" validate:"required,notblank,max=480"`
}

// Send: POST /v1/sms/send
func (h *SMSHandler) Send(c echo.Context) error {
	var req smsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.SMS.Send(ctx, req.To, req.Message); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"sent": true})
}
