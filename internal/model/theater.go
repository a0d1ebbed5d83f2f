package model

import "time"

// Theater is a tenant of the platform: one venue with its own canteen,
// staff, roles, QR codes and catalogue. Every tenant-owned record carries
// the theater's ID.
type Theater struct {
	ID        uint64    `json:"id"`         // theaters.id
	Name      string    `json:"name"`       // theaters.name
	Slug      string    `json:"slug"`       // theaters.slug, unique, used in QR target URLs
	Address   string    `json:"address"`    // theaters.address
	City      string    `json:"city"`       // theaters.city
	Phone     string    `json:"phone"`      // theaters.phone
	Email     string    `json:"email"`      // theaters.email
	LogoURL   string    `json:"logo_url"`   // theaters.logo_url
	IsActive  bool      `json:"is_active"`  // theaters.is_active
	CreatedAt time.Time `json:"created_at"` // theaters.created_at
	UpdatedAt time.Time `json:"updated_at"` // theaters.updated_at
}

// TheaterFilter narrows theater listings.
type TheaterFilter struct {
	Search   string
	IsActive *bool
	Page     Page
}
