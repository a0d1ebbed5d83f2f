package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// TheaterStats is the per-theater dashboard.
type TheaterStats struct {
	OrdersToday    int            `json:"orders_today"`
	RevenueToday   uint64         `json:"revenue_today_cents"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
	TopProducts    []TopProduct   `json:"top_products"`
	ActiveProducts int            `json:"active_products"`
	ActiveQRCodes  int            `json:"active_qr_codes"`
}

// TopProduct is one entry of the best sellers list.
type TopProduct struct {
	ProductID   uint64 `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// PlatformStats is the SUPER_ADMIN dashboard.
type PlatformStats struct {
	TheatersTotal  int `json:"theaters_total"`
	TheatersActive int `json:"theaters_active"`
	Users          int `json:"users"`
	OrdersToday    int `json:"orders_today"`
}

// StatsRepo runs the dashboard aggregates.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// TopProductsLimit and TopProductsWindow bound the best sellers list.
const (
	TopProductsLimit  = 5
	TopProductsWindow = 7 * 24 * time.Hour
)

// Theater computes the dashboard of one theater. dayStart is the start of
// "today" in UTC; revenue counts every non-cancelled order since then.
func (r *StatsRepo) Theater(ctx context.Context, theaterID uint64, dayStart time.Time) (TheaterStats, error) {
	st := TheaterStats{OrdersByStatus: map[string]int{}, TopProducts: []TopProduct{}}
	dayStart = dayStart.UTC()

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status <> ? THEN total_cents ELSE 0 END), 0)
		 FROM orders WHERE theater_id = ? AND created_at >= ?`,
		model.OrderCancelled, theaterID, dayStart).Scan(&st.OrdersToday, &st.RevenueToday); err != nil {
		return st, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM orders WHERE theater_id = ? AND created_at >= ? GROUP BY status",
		theaterID, dayStart)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.OrdersByStatus[s] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT oi.product_id, oi.product_name, SUM(oi.quantity) AS qty
		 FROM order_items oi JOIN orders o ON o.id = oi.order_id
		 WHERE o.theater_id = ? AND o.status <> ? AND o.created_at >= ?
		 GROUP BY oi.product_id, oi.product_name
		 ORDER BY qty DESC, oi.product_id LIMIT ?`,
		theaterID, model.OrderCancelled, dayStart.Add(-TopProductsWindow), TopProductsLimit)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.Quantity); err != nil {
			rows.Close()
			return st, err
		}
		st.TopProducts = append(st.TopProducts, tp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE theater_id = ? AND is_active = 1", theaterID).Scan(&st.ActiveProducts); err != nil {
		return st, err
	}
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM qr_codes WHERE theater_id = ? AND is_active = 1", theaterID).Scan(&st.ActiveQRCodes)
	return st, err
}

// Platform computes the platform-wide dashboard.
func (r *StatsRepo) Platform(ctx context.Context, dayStart time.Time) (PlatformStats, error) {
	var st PlatformStats
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM theaters").Scan(&st.TheatersTotal, &st.TheatersActive); err != nil {
		return st, err
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&st.Users); err != nil {
		return st, err
	}
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders WHERE created_at >= ?", dayStart.UTC()).Scan(&st.OrdersToday)
	return st, err
}
