package model

import "time"

// Banner is a promotional image. TheaterID nil marks a platform-wide banner.
// StartsAt/EndsAt bound the display window when set.
type Banner struct {
	ID        uint64     `json:"id"`
	TheaterID *uint64    `json:"theater_id,omitempty"`
	Title     string     `json:"title"`
	ImageURL  string     `json:"image_url"`
	LinkURL   string     `json:"link_url"`
	SortOrder int        `json:"sort_order"`
	IsActive  bool       `json:"is_active"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// VisibleAt reports whether the banner is active and its window contains t.
func (b Banner) VisibleAt(t time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.StartsAt != nil && t.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !t.Before(*b.EndsAt) {
		return false
	}
	return true
}
