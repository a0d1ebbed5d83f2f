package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// BannerRepo stores platform banners (theater_id NULL) and theater banners.
type BannerRepo struct {
	db *sql.DB
}

func NewBannerRepo(db *sql.DB) *BannerRepo { return &BannerRepo{db: db} }

const bannerColumns = "id, theater_id, title, image_url, link_url, sort_order, is_active, starts_at, ends_at, created_at, updated_at"

func scanBanner(s rowScanner) (model.Banner, error) {
	var (
		b         model.Banner
		theaterID sql.NullInt64
		starts    sql.NullTime
		ends      sql.NullTime
	)
	err := s.Scan(&b.ID, &theaterID, &b.Title, &b.ImageURL, &b.LinkURL, &b.SortOrder, &b.IsActive,
		&starts, &ends, &b.CreatedAt, &b.UpdatedAt)
	b.TheaterID = idPtr(theaterID)
	b.StartsAt = timePtr(starts)
	b.EndsAt = timePtr(ends)
	return b, err
}

// scope returns the WHERE fragment matching the banner owner.
func bannerScope(theaterID *uint64) (string, []any) {
	if theaterID == nil {
		return "theater_id IS NULL", nil
	}
	return "theater_id = ?", []any{*theaterID}
}

func (r *BannerRepo) Create(ctx context.Context, b *model.Banner) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO banners (theater_id, title, image_url, link_url, sort_order, is_active, starts_at, ends_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		nullID(b.TheaterID), b.Title, b.ImageURL, b.LinkURL, b.SortOrder, b.IsActive, nullTime(b.StartsAt), nullTime(b.EndsAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// Get fetches a banner owned by theaterID (nil for platform banners).
func (r *BannerRepo) Get(ctx context.Context, theaterID *uint64, id uint64) (model.Banner, error) {
	scope, args := bannerScope(theaterID)
	b, err := scanBanner(r.db.QueryRowContext(ctx,
		"SELECT "+bannerColumns+" FROM banners WHERE id = ? AND "+scope, append([]any{id}, args...)...))
	return b, notFound(err)
}

// List returns all banners of one owner ordered for display.
func (r *BannerRepo) List(ctx context.Context, theaterID *uint64) ([]model.Banner, error) {
	scope, args := bannerScope(theaterID)
	return r.query(ctx, "SELECT "+bannerColumns+" FROM banners WHERE "+scope+" ORDER BY sort_order, id", args...)
}

// ListVisible returns active banners whose window contains now: the
// theater's own banners first, then platform banners.
func (r *BannerRepo) ListVisible(ctx context.Context, theaterID uint64, now time.Time) ([]model.Banner, error) {
	now = now.UTC()
	return r.query(ctx,
		"SELECT "+bannerColumns+` FROM banners
		 WHERE (theater_id = ? OR theater_id IS NULL) AND is_active = 1
		   AND (starts_at IS NULL OR starts_at <= ?) AND (ends_at IS NULL OR ends_at > ?)
		 ORDER BY theater_id IS NULL, sort_order, id`,
		theaterID, now, now)
}

func (r *BannerRepo) query(ctx context.Context, q string, args ...any) ([]model.Banner, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Banner{}
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BannerRepo) Update(ctx context.Context, b *model.Banner) error {
	scope, args := bannerScope(b.TheaterID)
	res, err := r.db.ExecContext(ctx,
		`UPDATE banners SET title=?, image_url=?, link_url=?, sort_order=?, is_active=?, starts_at=?, ends_at=?,
		 updated_at=CURRENT_TIMESTAMP WHERE id=? AND `+scope,
		append([]any{b.Title, b.ImageURL, b.LinkURL, b.SortOrder, b.IsActive, nullTime(b.StartsAt), nullTime(b.EndsAt), b.ID}, args...)...)
	return affectedOrNotFound(res, err)
}

func (r *BannerRepo) SetActive(ctx context.Context, theaterID *uint64, id uint64, active bool) error {
	scope, args := bannerScope(theaterID)
	res, err := r.db.ExecContext(ctx,
		"UPDATE banners SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND "+scope,
		append([]any{active, id}, args...)...)
	return affectedOrNotFound(res, err)
}

// Reorder assigns sort_order 0..n-1 following ids. Every id must belong to
// the owner or nothing is changed.
func (r *BannerRepo) Reorder(ctx context.Context, theaterID *uint64, ids []uint64) error {
	scope, args := bannerScope(theaterID)
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for i, id := range ids {
			res, err := tx.ExecContext(ctx,
				"UPDATE banners SET sort_order=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND "+scope,
				append([]any{i, id}, args...)...)
			if err := affectedOrNotFound(res, err); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BannerRepo) Delete(ctx context.Context, theaterID *uint64, id uint64) error {
	scope, args := bannerScope(theaterID)
	res, err := r.db.ExecContext(ctx, "DELETE FROM banners WHERE id = ? AND "+scope, append([]any{id}, args...)...)
	return affectedOrNotFound(res, err)
}
