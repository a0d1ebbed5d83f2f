package model

import "time"

// QR code kinds. SINGLE codes stand for one spot (counter, lobby). SCREEN
// codes are generated per seat from a QRCodeName template.
const (
	QRTypeSingle = "SINGLE"
	QRTypeScreen = "SCREEN"
)

// QRCodeName is a named group of seat QR codes, e.g. "Screen 1 Premium".
type QRCodeName struct {
	ID          uint64    `json:"id"`
	TheaterID   uint64    `json:"theater_id"`
	Name        string    `json:"name"`
	SeatClass   string    `json:"seat_class"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QRCode is one printable code. Code is the opaque token carried in the
// target URL; scanning it opens the theater menu bound to this code.
type QRCode struct {
	ID           uint64    `json:"id"`
	TheaterID    uint64    `json:"theater_id"`
	QRCodeNameID *uint64   `json:"qr_code_name_id,omitempty"`
	QRType       string    `json:"qr_type"`
	Name         string    `json:"name"`
	SeatLabel    string    `json:"seat_label,omitempty"`
	Code         string    `json:"code"`
	TargetURL    string    `json:"target_url"`
	ImageURL     string    `json:"image_url"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QRCodeFilter narrows QR code listings.
type QRCodeFilter struct {
	QRType       string
	QRCodeNameID uint64
	IsActive     *bool
	Page         Page
}
