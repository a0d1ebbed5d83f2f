package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// ProductTypeRepo stores menu categories.
type ProductTypeRepo struct {
	db *sql.DB
}

func NewProductTypeRepo(db *sql.DB) *ProductTypeRepo { return &ProductTypeRepo{db: db} }

const productTypeColumns = "id, theater_id, name, description, image_url, sort_order, is_active, created_at, updated_at"

func scanProductType(s rowScanner) (model.ProductType, error) {
	var t model.ProductType
	err := s.Scan(&t.ID, &t.TheaterID, &t.Name, &t.Description, &t.ImageURL, &t.SortOrder, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *ProductTypeRepo) Create(ctx context.Context, t *model.ProductType) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO product_types (theater_id, name, description, image_url, sort_order, is_active) VALUES (?,?,?,?,?,?)",
		t.TheaterID, t.Name, t.Description, t.ImageURL, t.SortOrder, t.IsActive)
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
	return nil
}

func (r *ProductTypeRepo) Get(ctx context.Context, theaterID, id uint64) (model.ProductType, error) {
	t, err := scanProductType(r.db.QueryRowContext(ctx,
		"SELECT "+productTypeColumns+" FROM product_types WHERE id = ? AND theater_id = ?", id, theaterID))
	return t, notFound(err)
}

// List returns a theater's product types; activeOnly hides disabled ones.
func (r *ProductTypeRepo) List(ctx context.Context, theaterID uint64, activeOnly bool) ([]model.ProductType, error) {
	q := "SELECT " + productTypeColumns + " FROM product_types WHERE theater_id = ?"
	if activeOnly {
		q += " AND is_active = 1"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY sort_order, name", theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProductType{}
	for rows.Next() {
		t, err := scanProductType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ProductTypeRepo) Update(ctx context.Context, t *model.ProductType) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE product_types SET name=?, description=?, image_url=?, sort_order=?, is_active=?, updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND theater_id=?`,
		t.Name, t.Description, t.ImageURL, t.SortOrder, t.IsActive, t.ID, t.TheaterID)
	return affectedOrNotFound(res, err)
}

func (r *ProductTypeRepo) SetActive(ctx context.Context, theaterID, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE product_types SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?", active, id, theaterID)
	return affectedOrNotFound(res, err)
}

// Delete removes a product type; a type that still has products yields ErrConflict.
func (r *ProductTypeRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM product_types WHERE id = ? AND theater_id = ? FOR UPDATE", id, theaterID).Scan(&one); err != nil {
			return notFound(err)
		}
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE product_type_id = ?", id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM product_types WHERE id = ?", id)
		return err
	})
}

// ProductRepo stores sellable items.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = "id, theater_id, product_type_id, name, description, price_cents, stock, image_url, is_veg, is_active, created_at, updated_at"

func scanProduct(s rowScanner) (model.Product, error) {
	var (
		p     model.Product
		stock sql.NullInt64
	)
	err := s.Scan(&p.ID, &p.TheaterID, &p.ProductTypeID, &p.Name, &p.Description, &p.PriceCents, &stock,
		&p.ImageURL, &p.IsVeg, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Stock = intPtr(stock)
	return p, err
}

// Create inserts a product after checking that its type belongs to the same theater.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := typeInTheater(ctx, tx, p.TheaterID, p.ProductTypeID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO products (theater_id, product_type_id, name, description, price_cents, stock, image_url, is_veg, is_active)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			p.TheaterID, p.ProductTypeID, p.Name, p.Description, p.PriceCents, nullInt(p.Stock), p.ImageURL, p.IsVeg, p.IsActive)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		return nil
	})
}

func typeInTheater(ctx context.Context, q queryRower, theaterID, typeID uint64) error {
	var one int
	if err := q.QueryRowContext(ctx,
		"SELECT 1 FROM product_types WHERE id = ? AND theater_id = ?", typeID, theaterID).Scan(&one); err != nil {
		return notFound(err)
	}
	return nil
}

func (r *ProductRepo) Get(ctx context.Context, theaterID, id uint64) (model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ? AND theater_id = ?", id, theaterID))
	return p, notFound(err)
}

// GetMany fetches products of one theater by id. Missing ids are absent
// from the result map.
func (r *ProductRepo) GetMany(ctx context.Context, theaterID uint64, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := []any{theaterID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE theater_id = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *ProductRepo) List(ctx context.Context, theaterID uint64, f model.ProductFilter) ([]model.Product, int, error) {
	conds := []string{"theater_id = ?"}
	args := []any{theaterID}
	if f.ProductTypeID != 0 {
		conds = append(conds, "product_type_id = ?")
		args = append(args, f.ProductTypeID)
	}
	if f.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, likePattern(s))
	}
	where := " WHERE " + strings.Join(conds, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products"+where+" ORDER BY name, id LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// ListActive returns every active product of a theater for the public menu.
func (r *ProductRepo) ListActive(ctx context.Context, theaterID uint64) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE theater_id = ? AND is_active = 1 ORDER BY product_type_id, name", theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := typeInTheater(ctx, tx, p.TheaterID, p.ProductTypeID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET product_type_id=?, name=?, description=?, price_cents=?, stock=?, image_url=?, is_veg=?, is_active=?,
			 updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?`,
			p.ProductTypeID, p.Name, p.Description, p.PriceCents, nullInt(p.Stock), p.ImageURL, p.IsVeg, p.IsActive, p.ID, p.TheaterID)
		return affectedOrNotFound(res, err)
	})
}

func (r *ProductRepo) SetActive(ctx context.Context, theaterID, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?", active, id, theaterID)
	return affectedOrNotFound(res, err)
}

// AdjustStock adds delta to a limited product's stock and returns the new
// value. Unlimited products yield ErrConflict and a result below zero
// yields ErrInsufficientStock.
func (r *ProductRepo) AdjustStock(ctx context.Context, theaterID, id uint64, delta int) (int, error) {
	var stock int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var cur sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			"SELECT stock FROM products WHERE id = ? AND theater_id = ? FOR UPDATE", id, theaterID).Scan(&cur); err != nil {
			return notFound(err)
		}
		if !cur.Valid {
			return ErrConflict
		}
		stock = int(cur.Int64) + delta
		if stock < 0 {
			return ErrInsufficientStock
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET stock=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", stock, id)
		return err
	})
	return stock, err
}

func (r *ProductRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ? AND theater_id = ?", id, theaterID)
	return affectedOrNotFound(res, err)
}
