package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// QRCodeNameRepo stores the named templates seat QR codes are generated from.
type QRCodeNameRepo struct {
	db *sql.DB
}

func NewQRCodeNameRepo(db *sql.DB) *QRCodeNameRepo { return &QRCodeNameRepo{db: db} }

const qrNameColumns = "id, theater_id, name, seat_class, description, is_active, created_at, updated_at"

func scanQRName(s rowScanner) (model.QRCodeName, error) {
	var n model.QRCodeName
	err := s.Scan(&n.ID, &n.TheaterID, &n.Name, &n.SeatClass, &n.Description, &n.IsActive, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *QRCodeNameRepo) Create(ctx context.Context, n *model.QRCodeName) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO qr_code_names (theater_id, name, seat_class, description, is_active) VALUES (?,?,?,?,?)",
		n.TheaterID, n.Name, n.SeatClass, n.Description, n.IsActive)
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
	n.ID = uint64(id)
	return nil
}

func (r *QRCodeNameRepo) Get(ctx context.Context, theaterID, id uint64) (model.QRCodeName, error) {
	n, err := scanQRName(r.db.QueryRowContext(ctx,
		"SELECT "+qrNameColumns+" FROM qr_code_names WHERE id = ? AND theater_id = ?", id, theaterID))
	return n, notFound(err)
}

func (r *QRCodeNameRepo) List(ctx context.Context, theaterID uint64) ([]model.QRCodeName, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+qrNameColumns+" FROM qr_code_names WHERE theater_id = ? ORDER BY name", theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.QRCodeName{}
	for rows.Next() {
		n, err := scanQRName(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *QRCodeNameRepo) Update(ctx context.Context, n *model.QRCodeName) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE qr_code_names SET name=?, seat_class=?, description=?, is_active=?, updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND theater_id=?`,
		n.Name, n.SeatClass, n.Description, n.IsActive, n.ID, n.TheaterID)
	return affectedOrNotFound(res, err)
}

// Delete removes a QR name together with its seat codes.
func (r *QRCodeNameRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM qr_codes WHERE qr_code_name_id = ? AND theater_id = ?", id, theaterID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM qr_code_names WHERE id = ? AND theater_id = ?", id, theaterID)
		return affectedOrNotFound(res, err)
	})
}

// QRCodeRepo stores printable QR codes.
type QRCodeRepo struct {
	db *sql.DB
}

func NewQRCodeRepo(db *sql.DB) *QRCodeRepo { return &QRCodeRepo{db: db} }

const qrColumns = "id, theater_id, qr_code_name_id, qr_type, name, seat_label, code, target_url, image_url, is_active, created_at, updated_at"

func scanQR(s rowScanner) (model.QRCode, error) {
	var (
		q      model.QRCode
		nameID sql.NullInt64
		seat   sql.NullString
	)
	err := s.Scan(&q.ID, &q.TheaterID, &nameID, &q.QRType, &q.Name, &seat, &q.Code, &q.TargetURL,
		&q.ImageURL, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	q.QRCodeNameID = idPtr(nameID)
	q.SeatLabel = seat.String
	return q, err
}

const insertQR = `INSERT INTO qr_codes (theater_id, qr_code_name_id, qr_type, name, seat_label, code, target_url, image_url, is_active)
	VALUES (?,?,?,?,?,?,?,?,?)`

func insertQRCode(ctx context.Context, db execer, q *model.QRCode) error {
	res, err := db.ExecContext(ctx, insertQR,
		q.TheaterID, nullID(q.QRCodeNameID), q.QRType, q.Name, nullString(q.SeatLabel), q.Code, q.TargetURL, q.ImageURL, q.IsActive)
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
	q.ID = uint64(id)
	return nil
}

// Create inserts a single code.
func (r *QRCodeRepo) Create(ctx context.Context, q *model.QRCode) error {
	return insertQRCode(ctx, r.db, q)
}

// CreateBatch inserts codes in one transaction; any failure rolls back all.
func (r *QRCodeRepo) CreateBatch(ctx context.Context, codes []*model.QRCode) error {
	if len(codes) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, q := range codes {
			if err := insertQRCode(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *QRCodeRepo) Get(ctx context.Context, theaterID, id uint64) (model.QRCode, error) {
	q, err := scanQR(r.db.QueryRowContext(ctx,
		"SELECT "+qrColumns+" FROM qr_codes WHERE id = ? AND theater_id = ?", id, theaterID))
	return q, notFound(err)
}

// GetByCode resolves a scanned code.
func (r *QRCodeRepo) GetByCode(ctx context.Context, code string) (model.QRCode, error) {
	q, err := scanQR(r.db.QueryRowContext(ctx, "SELECT "+qrColumns+" FROM qr_codes WHERE code = ?", code))
	return q, notFound(err)
}

// SeatLabels returns the seat labels already generated for a QR name.
func (r *QRCodeRepo) SeatLabels(ctx context.Context, nameID uint64) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT seat_label FROM qr_codes WHERE qr_code_name_id = ? AND seat_label IS NOT NULL", nameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out[s] = true
	}
	return out, rows.Err()
}

func (r *QRCodeRepo) List(ctx context.Context, theaterID uint64, f model.QRCodeFilter) ([]model.QRCode, int, error) {
	conds := []string{"theater_id = ?"}
	args := []any{theaterID}
	if f.QRType != "" {
		conds = append(conds, "qr_type = ?")
		args = append(args, f.QRType)
	}
	if f.QRCodeNameID != 0 {
		conds = append(conds, "qr_code_name_id = ?")
		args = append(args, f.QRCodeNameID)
	}
	if f.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	where := " WHERE " + strings.Join(conds, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM qr_codes"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+qrColumns+" FROM qr_codes"+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, f.Page.Limit(), f.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.QRCode
	for rows.Next() {
		q, err := scanQR(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *QRCodeRepo) SetActive(ctx context.Context, theaterID, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE qr_codes SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?", active, id, theaterID)
	return affectedOrNotFound(res, err)
}

func (r *QRCodeRepo) SetImageURL(ctx context.Context, theaterID, id uint64, url string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE qr_codes SET image_url=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?", url, id, theaterID)
	return affectedOrNotFound(res, err)
}

func (r *QRCodeRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM qr_codes WHERE id = ? AND theater_id = ?", id, theaterID)
	return affectedOrNotFound(res, err)
}
