package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// DefaultStaffPermissions are granted to the "Staff" role created with
// every theater.
var DefaultStaffPermissions = []string{model.PermDashboardView, model.PermOrderView, model.PermOrderManage}

// TheaterRepo encapsulates all database queries related to theaters.
type TheaterRepo struct {
	db *sql.DB
}

func NewTheaterRepo(db *sql.DB) *TheaterRepo { return &TheaterRepo{db: db} }

const theaterColumns = "id, name, slug, address, city, phone, email, logo_url, is_active, created_at, updated_at"

func scanTheater(s rowScanner) (model.Theater, error) {
	var t model.Theater
	err := s.Scan(&t.ID, &t.Name, &t.Slug, &t.Address, &t.City, &t.Phone, &t.Email, &t.LogoURL,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// uniqueSlug derives a slug from name and appends -2, -3 ... until it is free.
func uniqueSlug(ctx context.Context, q queryRower, name string, excludeID uint64) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "theater"
	}
	result := base
	for i := 2; ; i++ {
		var n int
		if err := q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM theaters WHERE slug = ? AND id <> ?", result, excludeID).Scan(&n); err != nil {
			return "", err
		}
		if n == 0 {
			return result, nil
		}
		result = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create inserts a theater with a unique slug and its default "Staff" role.
// When admin is non-nil it is inserted as the theater's THEATER_ADMIN in the
// same transaction; admin.PasswordHash must already be set.
func (r *TheaterRepo) Create(ctx context.Context, t *model.Theater, admin *model.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := uniqueSlug(ctx, tx, t.Name, 0)
		if err != nil {
			return err
		}
		t.Slug = s
		res, err := tx.ExecContext(ctx,
			"INSERT INTO theaters (name, slug, address, city, phone, email, logo_url, is_active) VALUES (?,?,?,?,?,?,?,?)",
			t.Name, t.Slug, t.Address, t.City, t.Phone, t.Email, t.LogoURL, t.IsActive)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)

		staff := &model.Role{TheaterID: t.ID, Name: "Staff", Description: "Default counter staff role",
			Permissions: DefaultStaffPermissions, IsDefault: true, IsActive: true}
		if err := insertRole(ctx, tx, staff); err != nil {
			return err
		}

		if admin != nil {
			admin.TheaterID = &t.ID
			admin.RoleID = nil
			admin.AccountType = model.AccountTheaterAdmin
			admin.IsActive = true
			if err := insertUser(ctx, tx, admin); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM theaters WHERE id = ?", t.ID).
			Scan(&t.CreatedAt, &t.UpdatedAt)
	})
}

// GetByID fetches a theater by id.
func (r *TheaterRepo) GetByID(ctx context.Context, id uint64) (model.Theater, error) {
	t, err := scanTheater(r.db.QueryRowContext(ctx, "SELECT "+theaterColumns+" FROM theaters WHERE id = ?", id))
	return t, notFound(err)
}

// GetBySlug fetches a theater by its slug.
func (r *TheaterRepo) GetBySlug(ctx context.Context, s string) (model.Theater, error) {
	t, err := scanTheater(r.db.QueryRowContext(ctx, "SELECT "+theaterColumns+" FROM theaters WHERE slug = ?", s))
	return t, notFound(err)
}

// List pages through theaters with an optional name/city search and active filter.
func (r *TheaterRepo) List(ctx context.Context, f model.TheaterFilter) ([]model.Theater, int, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(name LIKE ? OR city LIKE ?)")
		args = append(args, likePattern(s), likePattern(s))
	}
	if f.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM theaters"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+theaterColumns+" FROM theaters"+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Theater
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Update writes the profile fields. The slug follows the name when the name
// changes.
func (r *TheaterRepo) Update(ctx context.Context, t *model.Theater) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, "SELECT name FROM theaters WHERE id = ? FOR UPDATE", t.ID).Scan(&current); err != nil {
			return notFound(err)
		}
		if current != t.Name || t.Slug == "" {
			s, err := uniqueSlug(ctx, tx, t.Name, t.ID)
			if err != nil {
				return err
			}
			t.Slug = s
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE theaters SET name=?, slug=?, address=?, city=?, phone=?, email=?, logo_url=?, updated_at=CURRENT_TIMESTAMP
			 WHERE id=?`,
			t.Name, t.Slug, t.Address, t.City, t.Phone, t.Email, t.LogoURL, t.ID)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// SetActive toggles a theater. Users of inactive theaters cannot log in.
func (r *TheaterRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE theaters SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", active, id)
	return affectedOrNotFound(res, err)
}

// Delete removes a theater and everything it owns. Theaters with orders are
// kept for bookkeeping and yield ErrConflict.
func (r *TheaterRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM theaters WHERE id = ? FOR UPDATE", id).Scan(&exists); err != nil {
			return notFound(err)
		}
		var orders int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE theater_id = ?", id).Scan(&orders); err != nil {
			return err
		}
		if orders > 0 {
			return ErrConflict
		}
		// children first: products reference product_types, users reference roles
		for _, q := range []string{
			"DELETE FROM products WHERE theater_id = ?",
			"DELETE FROM product_types WHERE theater_id = ?",
			"DELETE FROM qr_codes WHERE theater_id = ?",
			"DELETE FROM qr_code_names WHERE theater_id = ?",
			"DELETE FROM banners WHERE theater_id = ?",
			"DELETE FROM users WHERE theater_id = ?",
			"DELETE FROM roles WHERE theater_id = ?",
			"DELETE FROM theaters WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}
