package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/qrcode"
	"github.com/iliyamo/theater-canteen/internal/seatmap"
	"github.com/iliyamo/theater-canteen/internal/storage"
)

type qrNameStore interface {
	Create(ctx context.Context, n *model.QRCodeName) error
	Get(ctx context.Context, theaterID, id uint64) (model.QRCodeName, error)
	List(ctx context.Context, theaterID uint64) ([]model.QRCodeName, error)
	Update(ctx context.Context, n *model.QRCodeName) error
	Delete(ctx context.Context, theaterID, id uint64) error
}

type qrCodeStore interface {
	Create(ctx context.Context, q *model.QRCode) error
	CreateBatch(ctx context.Context, codes []*model.QRCode) error
	Get(ctx context.Context, theaterID, id uint64) (model.QRCode, error)
	SeatLabels(ctx context.Context, nameID uint64) (map[string]bool, error)
	List(ctx context.Context, theaterID uint64, f model.QRCodeFilter) ([]model.QRCode, int, error)
	SetActive(ctx context.Context, theaterID, id uint64, active bool) error
	SetImageURL(ctx context.Context, theaterID, id uint64, url string) error
	Delete(ctx context.Context, theaterID, id uint64) error
}

// QRCodeHandler manages QR code names and QR codes.
type QRCodeHandler struct {
	Names    qrNameStore
	Codes    qrCodeStore
	Theaters theaterGetter
	Images   storage.ImageStore // nil when uploads are not configured
	BaseURL  string
}

type qrNameReq struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	SeatClass   string `json:"seat_class" validate:"max=50"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

type singleQRReq struct {
	Name         string  `json:"name" validate:"required,notblank,max=100"`
	QRCodeNameID *uint64 `json:"qr_code_name_id"`
}

type screenQRReq struct {
	QRCodeNameID uint64   `json:"qr_code_name_id" validate:"required"`
	Rows         string   `json:"rows" validate:"required,notblank"`
	SeatsPerRow  int      `json:"seats_per_row" validate:"required,min=1,max=200"`
	StartNumber  int      `json:"start_number" validate:"min=0,max=9999"`
	Skip         []string `json:"skip"`
}

// ----- QR code names -----

// ListNames: GET /v1/theaters/:theaterId/qr-names
func (h *QRCodeHandler) ListNames(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	names, err := h.Names.List(ctx, theaterParam(c))
	if err != nil {
		return err
	}
	if names == nil {
		names = []model.QRCodeName{}
	}
	return c.JSON(http.StatusOK, names)
}

// CreateName: POST /v1/theaters/:theaterId/qr-names
func (h *QRCodeHandler) CreateName(c echo.Context) error {
	var req qrNameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	n := &model.QRCodeName{
		TheaterID:   theaterParam(c),
		Name:        strings.TrimSpace(req.Name),
		SeatClass:   strings.TrimSpace(req.SeatClass),
		Description: strings.TrimSpace(req.Description),
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Names.Create(ctx, n); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// GetName: GET /v1/theaters/:theaterId/qr-names/:id
func (h *QRCodeHandler) GetName(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Names.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// UpdateName: PUT /v1/theaters/:theaterId/qr-names/:id
func (h *QRCodeHandler) UpdateName(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req qrNameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Names.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	n.Name = strings.TrimSpace(req.Name)
	n.SeatClass = strings.TrimSpace(req.SeatClass)
	n.Description = strings.TrimSpace(req.Description)
	if req.IsActive != nil {
		n.IsActive = *req.IsActive
	}
	if err := h.Names.Update(ctx, &n); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// DeleteName: DELETE /v1/theaters/:theaterId/qr-names/:id. The name's
// codes are deleted with it.
func (h *QRCodeHandler) DeleteName(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Names.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- QR codes -----

func (h *QRCodeHandler) newCode(theater model.Theater, qrType, name string) *model.QRCode {
	code := qrcode.NewCode()
	return &model.QRCode{
		TheaterID: theater.ID,
		QRType:    qrType,
		Name:      name,
		Code:      code,
		TargetURL: qrcode.TargetURL(h.BaseURL, theater.Slug, code),
		IsActive:  true,
	}
}

// CreateSingle: POST /v1/theaters/:theaterId/qrcodes/single
func (h *QRCodeHandler) CreateSingle(c echo.Context) error {
	var req singleQRReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tid := theaterParam(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	theater, err := h.Theaters.GetByID(ctx, tid)
	if err != nil {
		return err
	}
	if req.QRCodeNameID != nil {
		if _, err := h.Names.Get(ctx, tid, *req.QRCodeNameID); err != nil {
			return err
		}
	}
	q := h.newCode(theater, model.QRTypeSingle, strings.TrimSpace(req.Name))
	q.QRCodeNameID = req.QRCodeNameID
	if err := h.Codes.Create(ctx, q); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, q)
}

type screenPlan struct {
	name     model.QRCodeName
	labels   []string // labels to create
	existing []string // labels already present for the name
}

func (h *QRCodeHandler) planScreen(ctx context.Context, tid uint64, req screenQRReq) (screenPlan, error) {
	rows, err := seatmap.ParseRowRange(req.Rows)
	if err != nil {
		return screenPlan{}, err
	}
	labels, err := seatmap.Generate(seatmap.Spec{
		Rows: rows, SeatsPerRow: req.SeatsPerRow, StartNumber: req.StartNumber, Skip: req.Skip,
	})
	if err != nil {
		return screenPlan{}, err
	}
	if len(labels) == 0 {
		return screenPlan{}, seatmap.ErrEmpty
	}
	name, err := h.Names.Get(ctx, tid, req.QRCodeNameID)
	if err != nil {
		return screenPlan{}, err
	}
	have, err := h.Codes.SeatLabels(ctx, name.ID)
	if err != nil {
		return screenPlan{}, err
	}
	p := screenPlan{name: name, labels: make([]string, 0, len(labels)), existing: []string{}}
	for _, l := range labels {
		if have[l] {
			p.existing = append(p.existing, l)
		} else {
			p.labels = append(p.labels, l)
		}
	}
	return p, nil
}

// PreviewScreen: POST /v1/theaters/:theaterId/qrcodes/screen/preview. A
// dry run of GenerateScreen returning the seat map it would create.
func (h *QRCodeHandler) PreviewScreen(c echo.Context) error {
	var req screenQRReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.planScreen(ctx, theaterParam(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"qr_code_name": p.name,
		"layout":       seatmap.BuildLayout(p.labels),
		"new":          p.labels,
		"skipped":      p.existing,
	})
}

// GenerateScreen: POST /v1/theaters/:theaterId/qrcodes/screen. Creates one
// SCREEN code per seat label; labels the name already has are skipped.
func (h *QRCodeHandler) GenerateScreen(c echo.Context) error {
	var req screenQRReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tid := theaterParam(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 4*requestTimeout)
	defer cancel()
	theater, err := h.Theaters.GetByID(ctx, tid)
	if err != nil {
		return err
	}
	p, err := h.planScreen(ctx, tid, req)
	if err != nil {
		return err
	}
	codes := make([]*model.QRCode, 0, len(p.labels))
	for _, label := range p.labels {
		q := h.newCode(theater, model.QRTypeScreen, p.name.Name+" "+label)
		q.QRCodeNameID = &p.name.ID
		q.SeatLabel = label
		codes = append(codes, q)
	}
	if len(codes) > 0 {
		if err := h.Codes.CreateBatch(ctx, codes); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"created": len(codes),
		"skipped": p.existing,
		"codes":   codes,
	})
}

// List: GET /v1/theaters/:theaterId/qrcodes?qr_type=&qr_code_name_id=&is_active=
func (h *QRCodeHandler) List(c echo.Context) error {
	nameID, err := uintQuery(c, "qr_code_name_id")
	if err != nil {
		return err
	}
	active, err := boolQuery(c, "is_active")
	if err != nil {
		return err
	}
	qrType := strings.ToUpper(c.QueryParam("qr_type"))
	if qrType != "" && qrType != model.QRTypeSingle && qrType != model.QRTypeScreen {
		return badRequest("invalid qr_type")
	}
	f := model.QRCodeFilter{QRType: qrType, QRCodeNameID: nameID, IsActive: active, Page: pageFrom(c)}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Codes.List(ctx, theaterParam(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.NewPageResult(items, total, f.Page))
}

// Get: GET /v1/theaters/:theaterId/qrcodes/:id
func (h *QRCodeHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Codes.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

// SetActive: PATCH /v1/theaters/:theaterId/qrcodes/:id/active
func (h *QRCodeHandler) SetActive(c echo.Context) error {
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
	if err := h.Codes.SetActive(ctx, theaterParam(c), id, *req.IsActive); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.IsActive})
}

// Delete: DELETE /v1/theaters/:theaterId/qrcodes/:id
func (h *QRCodeHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Codes.Delete(ctx, theaterParam(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *QRCodeHandler) render(c echo.Context) (model.QRCode, []byte, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return model.QRCode{}, nil, err
	}
	size, _ := strconv.Atoi(c.QueryParam("size"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Codes.Get(ctx, theaterParam(c), id)
	if err != nil {
		return model.QRCode{}, nil, err
	}
	png, err := qrcode.RenderPNG(q.TargetURL, size)
	return q, png, err
}

// Image: GET /v1/theaters/:theaterId/qrcodes/:id/image.png?size=
func (h *QRCodeHandler) Image(c echo.Context) error {
	q, png, err := h.render(c)
	if err != nil {
		return err
	}
	if c.QueryParam("download") != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", "qr-"+q.Code+".png"))
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// UploadImage: POST /v1/theaters/:theaterId/qrcodes/:id/image. Renders the
// code, stores the PNG and saves its URL on the code.
func (h *QRCodeHandler) UploadImage(c echo.Context) error {
	if h.Images == nil {
		return storage.ErrNotConfigured
	}
	q, png, err := h.render(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 4*requestTimeout)
	defer cancel()
	res, err := h.Images.Upload(ctx, storage.FolderQRCodes, "qr-"+q.Code, bytes.NewReader(png))
	if err != nil {
		return err
	}
	if err := h.Codes.SetImageURL(ctx, q.TheaterID, q.ID, res.URL); err != nil {
		return err
	}
	q.ImageURL = res.URL
	return c.JSON(http.StatusOK, q)
}
