package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,theater_id,role_id,email,full_name,phone,password_hash,account_type,is_active,last_login_at,created_at,updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		theaterID sql.NullInt64
		roleID    sql.NullInt64
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &theaterID, &roleID, &u.Email, &u.FullName, &u.Phone, &u.PasswordHash,
		&u.AccountType, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.TheaterID = idPtr(theaterID)
	u.RoleID = idPtr(roleID)
	u.LastLoginAt = timePtr(lastLogin)
	return u, nil
}

// Create hashes password and inserts u, setting its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return insertUser(ctx, r.DB, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertUser writes a user whose PasswordHash is already set.
func insertUser(ctx context.Context, db execer, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := db.ExecContext(ctx,
		"INSERT INTO users (theater_id, role_id, email, full_name, phone, password_hash, account_type, is_active) VALUES (?,?,?,?,?,?,?,?)",
		nullID(u.TheaterID), nullID(u.RoleID), u.Email, u.FullName, u.Phone, u.PasswordHash, u.AccountType, u.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetInTheater fetches a user only if it belongs to theaterID.
func (r *UserRepo) GetInTheater(ctx context.Context, theaterID, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND theater_id=? LIMIT 1", id, theaterID))
	return u, notFound(err)
}

// ListByTheater pages through a theater's users, optionally filtered by a
// name/email substring.
func (r *UserRepo) ListByTheater(ctx context.Context, theaterID uint64, search string, page model.Page) ([]model.User, int, error) {
	where := " WHERE theater_id=?"
	args := []any{theaterID}
	if s := strings.TrimSpace(search); s != "" {
		where += " AND (email LIKE ? OR full_name LIKE ?)"
		args = append(args, likePattern(s), likePattern(s))
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes the editable profile fields of a theater user.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET full_name=?, phone=?, role_id=?, account_type=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?",
		u.FullName, u.Phone, nullID(u.RoleID), u.AccountType, u.ID, nullID(u.TheaterID))
	return affectedOrNotFound(res, err)
}

// SetActive toggles a theater user.
func (r *UserRepo) SetActive(ctx context.Context, theaterID, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND theater_id=?",
		active, id, theaterID)
	return affectedOrNotFound(res, err)
}

// SetPassword replaces the password hash of any user.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", hash, id)
	return affectedOrNotFound(res, err)
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

// Delete removes a theater user and its refresh tokens.
func (r *UserRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=? AND theater_id=?", id, theaterID)
	return affectedOrNotFound(res, err)
}
