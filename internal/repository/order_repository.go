package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// OrderRepo stores orders and their items and keeps product stock in step.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, theater_id, order_number, source, qr_code_id, seat_label, customer_name, customer_phone,
	customer_email, notes, status, payment_method, subtotal_cents, tax_cents, total_cents, created_by, created_at, updated_at`

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o         model.Order
		qrID      sql.NullInt64
		createdBy sql.NullInt64
	)
	err := s.Scan(&o.ID, &o.TheaterID, &o.OrderNumber, &o.Source, &qrID, &o.SeatLabel, &o.CustomerName,
		&o.CustomerPhone, &o.CustomerEmail, &o.Notes, &o.Status, &o.PaymentMethod, &o.SubtotalCents,
		&o.TaxCents, &o.TotalCents, &createdBy, &o.CreatedAt, &o.UpdatedAt)
	o.QRCodeID = idPtr(qrID)
	o.CreatedBy = idPtr(createdBy)
	return o, err
}

// Create inserts the order and its items and decrements limited stock in
// one transaction. A duplicate order number yields ErrDuplicate and a
// product that cannot cover its quantity yields ErrInsufficientStock.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO orders (theater_id, order_number, source, qr_code_id, seat_label, customer_name, customer_phone,
			 customer_email, notes, status, payment_method, subtotal_cents, tax_cents, total_cents, created_by)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			o.TheaterID, o.OrderNumber, o.Source, nullID(o.QRCodeID), o.SeatLabel, o.CustomerName, o.CustomerPhone,
			o.CustomerEmail, o.Notes, o.Status, o.PaymentMethod, o.SubtotalCents, o.TaxCents, o.TotalCents, nullID(o.CreatedBy))
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
		o.ID = uint64(id)

		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			res, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, unit_price_cents, quantity, line_total_cents)
				 VALUES (?,?,?,?,?,?)`,
				it.OrderID, it.ProductID, it.ProductName, it.UnitPriceCents, it.Quantity, it.LineTotalCents)
			if err != nil {
				return err
			}
			itemID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			it.ID = uint64(itemID)
			if err := takeStock(ctx, tx, o.TheaterID, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM orders WHERE id = ?", o.ID).
			Scan(&o.CreatedAt, &o.UpdatedAt)
	})
}

// takeStock decrements a limited product; unlimited (NULL) stock is left alone.
func takeStock(ctx context.Context, tx *sql.Tx, theaterID, productID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?
		 WHERE id = ? AND theater_id = ? AND stock IS NOT NULL AND stock >= ?`,
		qty, productID, theaterID, qty)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var stock sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT stock FROM products WHERE id = ? AND theater_id = ?", productID, theaterID).Scan(&stock); err != nil {
		return notFound(err)
	}
	if stock.Valid {
		return ErrInsufficientStock
	}
	return nil
}

func (r *OrderRepo) items(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price_cents, quantity, line_total_cents
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPriceCents,
			&it.Quantity, &it.LineTotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Get fetches an order with its items within a theater.
func (r *OrderRepo) Get(ctx context.Context, theaterID, id uint64) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ? AND theater_id = ?", id, theaterID))
	if err != nil {
		return o, notFound(err)
	}
	o.Items, err = r.items(ctx, o.ID)
	return o, err
}

// GetByNumber fetches an order with its items by order number.
func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE order_number = ?", number))
	if err != nil {
		return o, notFound(err)
	}
	o.Items, err = r.items(ctx, o.ID)
	return o, err
}

// List pages through a theater's orders, newest first, without items.
func (r *OrderRepo) List(ctx context.Context, theaterID uint64, f model.OrderFilter) ([]model.Order, int, error) {
	conds := []string{"theater_id = ?"}
	args := []any{theaterID}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(order_number LIKE ? OR customer_phone LIKE ?)")
		args = append(args, prefixPattern(s), prefixPattern(s))
	}
	where := " WHERE " + strings.Join(conds, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves an order to status to and returns the previous status.
// Disallowed moves yield model.ErrInvalidTransition. Cancelling restores
// the stock of limited products.
func (r *OrderRepo) UpdateStatus(ctx context.Context, theaterID, id uint64, to string) (string, error) {
	var from string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			"SELECT status FROM orders WHERE id = ? AND theater_id = ? FOR UPDATE", id, theaterID).Scan(&from); err != nil {
			return notFound(err)
		}
		if !model.CanTransition(from, to) {
			return model.ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", to, id); err != nil {
			return err
		}
		if to == model.OrderCancelled {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products p JOIN order_items oi ON oi.product_id = p.id
				 SET p.stock = p.stock + oi.quantity
				 WHERE oi.order_id = ? AND p.stock IS NOT NULL`, id); err != nil {
				return err
			}
		}
		return nil
	})
	return from, err
}

// ListStale returns PENDING orders created before cutoff, oldest first.
func (r *OrderRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = ? AND created_at < ? ORDER BY created_at LIMIT ?",
		model.OrderPending, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
