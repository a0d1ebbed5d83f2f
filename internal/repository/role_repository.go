package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// RoleRepo stores theater roles. Permissions are a JSON array column.
type RoleRepo struct {
	db *sql.DB
}

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

const roleColumns = "id, theater_id, name, description, permissions, is_default, is_active, created_at, updated_at"

func scanRole(s rowScanner) (model.Role, error) {
	var (
		r     model.Role
		perms []byte
	)
	if err := s.Scan(&r.ID, &r.TheaterID, &r.Name, &r.Description, &perms, &r.IsDefault, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &r.Permissions); err != nil {
			return r, err
		}
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	return r, nil
}

func encodePermissions(p []string) ([]byte, error) {
	if p == nil {
		p = []string{}
	}
	return json.Marshal(p)
}

func insertRole(ctx context.Context, db execer, r *model.Role) error {
	perms, err := encodePermissions(r.Permissions)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO roles (theater_id, name, description, permissions, is_default, is_active) VALUES (?,?,?,?,?,?)",
		r.TheaterID, r.Name, r.Description, perms, r.IsDefault, r.IsActive)
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
	r.ID = uint64(id)
	return nil
}

// Create inserts a role. Names are unique per theater.
func (r *RoleRepo) Create(ctx context.Context, role *model.Role) error {
	return insertRole(ctx, r.db, role)
}

// Get fetches a role within a theater.
func (r *RoleRepo) Get(ctx context.Context, theaterID, id uint64) (model.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id = ? AND theater_id = ?", id, theaterID))
	return role, notFound(err)
}

// List returns a theater's roles ordered by name.
func (r *RoleRepo) List(ctx context.Context, theaterID uint64) ([]model.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE theater_id = ? ORDER BY name", theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Update writes name, description, permissions and the active flag.
func (r *RoleRepo) Update(ctx context.Context, role *model.Role) error {
	perms, err := encodePermissions(role.Permissions)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name=?, description=?, permissions=?, is_active=?, updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND theater_id=?`,
		role.Name, role.Description, perms, role.IsActive, role.ID, role.TheaterID)
	return affectedOrNotFound(res, err)
}

// Delete removes a role. The default role and roles still assigned to
// users yield ErrConflict.
func (r *RoleRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var isDefault bool
		if err := tx.QueryRowContext(ctx,
			"SELECT is_default FROM roles WHERE id = ? AND theater_id = ? FOR UPDATE", id, theaterID).Scan(&isDefault); err != nil {
			return notFound(err)
		}
		if isDefault {
			return ErrConflict
		}
		var users int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role_id = ?", id).Scan(&users); err != nil {
			return err
		}
		if users > 0 {
			return ErrConflict
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
		return err
	})
}
