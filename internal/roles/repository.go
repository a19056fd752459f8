package roles

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrocomice/agroaccess/internal/platform/db"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// Repository is the persistence collaborator for role definitions.
type Repository interface {
	List(ctx context.Context, opts shared.ListOptions) ([]Role, error)
	Get(ctx context.Context, id string) (Role, error)
	FindByName(ctx context.Context, name string) (Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, id string) error
	CountByPermission(ctx context.Context, permissionID string) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, description, permission_id, created_at, updated_at`

// List returns all roles.
func (r *PGRepository) List(ctx context.Context, opts shared.ListOptions) ([]Role, error) {
	order := opts.SortColumn("name", "name", "created_at")
	if opts.Descending() {
		order += " DESC"
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY `+order+`, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Get fetches a role by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return Role{}, db.MapError(err)
	}
	return role, nil
}

// FindByName looks a role up by exact name. The unique index keeps at most
// one match; the ORDER BY picks the oldest should it ever be dropped.
func (r *PGRepository) FindByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1 ORDER BY created_at, id LIMIT 1`, name))
	if err != nil {
		return Role{}, db.MapError(err)
	}
	return role, nil
}

// Create inserts a new role.
func (r *PGRepository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO roles (id, name, description, permission_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING `+roleColumns, role.ID, role.Name, role.Description, role.PermissionID, role.CreatedAt)
	created, err := scanRole(row)
	if err != nil {
		return Role{}, db.MapWriteError(err)
	}
	return created, nil
}

// Update overwrites a role. Users keep whatever role name they already hold.
func (r *PGRepository) Update(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, permission_id = $4, updated_at = $5
WHERE id = $1 RETURNING `+roleColumns, role.ID, role.Name, role.Description, role.PermissionID, role.UpdatedAt)
	updated, err := scanRole(row)
	if err != nil {
		return Role{}, db.MapWriteError(err)
	}
	return updated, nil
}

// Delete removes a role by id.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByPermission counts roles pointing at a profile.
func (r *PGRepository) CountByPermission(ctx context.Context, permissionID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE permission_id = $1`, permissionID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.PermissionID, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

var _ Repository = (*PGRepository)(nil)
