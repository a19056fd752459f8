package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrocomice/agroaccess/internal/platform/db"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// Repository is the persistence collaborator for users.
type Repository interface {
	List(ctx context.Context, opts shared.ListOptions) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, roleName string) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, role, avatar, active, password_hash, created_at, updated_at`

// List returns all users.
func (r *PGRepository) List(ctx context.Context, opts shared.ListOptions) ([]User, error) {
	order := opts.SortColumn("name", "name", "email", "role", "created_at")
	if opts.Descending() {
		order += " DESC"
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY `+order+`, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a user by id.
func (r *PGRepository) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return User{}, db.MapError(err)
	}
	return u, nil
}

// FindByEmail fetches a user by email, ignoring case.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return User{}, db.MapError(err)
	}
	return u, nil
}

// Create inserts a user.
func (r *PGRepository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (id, name, email, role, avatar, active, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Role, u.Avatar, u.Active, u.PasswordHash, u.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		return User{}, db.MapWriteError(err)
	}
	return created, nil
}

// Update overwrites a user.
func (r *PGRepository) Update(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET name = $2, email = $3, role = $4, avatar = $5, active = $6, password_hash = $7, updated_at = $8
WHERE id = $1 RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Role, u.Avatar, u.Active, u.PasswordHash, u.UpdatedAt)
	updated, err := scanUser(row)
	if err != nil {
		return User{}, db.MapWriteError(err)
	}
	return updated, nil
}

// Delete removes a user row.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByRole counts users holding roleName, active or not.
func (r *PGRepository) CountByRole(ctx context.Context, roleName string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, roleName).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Avatar, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

var _ Repository = (*PGRepository)(nil)
