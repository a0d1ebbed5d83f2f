package model

import "time"

// ProductType is a canteen menu category (Snacks, Beverages, Combos).
type ProductType struct {
	ID          uint64    `json:"id"`
	TheaterID   uint64    `json:"theater_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a sellable canteen item. Stock nil means unlimited.
type Product struct {
	ID            uint64    `json:"id"`
	TheaterID     uint64    `json:"theater_id"`
	ProductTypeID uint64    `json:"product_type_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PriceCents    uint32    `json:"price_cents"`
	Stock         *int      `json:"stock"`
	ImageURL      string    `json:"image_url"`
	IsVeg         bool      `json:"is_veg"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Available reports whether qty units can be sold right now.
func (p Product) Available(qty int) bool {
	if !p.IsActive || qty < 1 {
		return false
	}
	return p.Stock == nil || *p.Stock >= qty
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	ProductTypeID uint64
	IsActive      *bool
	Search        string
	Page          Page
}
