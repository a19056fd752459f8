package profiles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrocomice/agroaccess/internal/platform/db"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// Repository is the persistence collaborator for permission profiles.
type Repository interface {
	List(ctx context.Context, opts shared.ListOptions) ([]Profile, error)
	Get(ctx context.Context, id string) (Profile, error)
	Create(ctx context.Context, p Profile) (Profile, error)
	Update(ctx context.Context, p Profile) (Profile, error)
	Delete(ctx context.Context, id string) error
}

// PGRepository stores profiles in PostgreSQL. The matrix lives in a JSONB column.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, name, description, matrix, created_at, updated_at`

// List returns all profiles ordered by name unless opts says otherwise.
func (r *PGRepository) List(ctx context.Context, opts shared.ListOptions) ([]Profile, error) {
	order := opts.SortColumn("name", "name", "created_at")
	if opts.Descending() {
		order += " DESC"
	}
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM permission_profiles ORDER BY `+order+`, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a profile by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM permission_profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return Profile{}, db.MapError(err)
	}
	return p, nil
}

// Create inserts a profile with a caller-assigned id.
func (r *PGRepository) Create(ctx context.Context, p Profile) (Profile, error) {
	data, err := rbac.MarshalMatrix(p.Matrix)
	if err != nil {
		return Profile{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO permission_profiles (id, name, description, matrix, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING `+profileColumns, p.ID, p.Name, p.Description, data, p.CreatedAt)
	created, err := scanProfile(row)
	if err != nil {
		return Profile{}, db.MapWriteError(err)
	}
	return created, nil
}

// Update overwrites name, description and matrix. Last write wins.
func (r *PGRepository) Update(ctx context.Context, p Profile) (Profile, error) {
	data, err := rbac.MarshalMatrix(p.Matrix)
	if err != nil {
		return Profile{}, err
	}
	row := r.pool.QueryRow(ctx, `UPDATE permission_profiles SET name = $2, description = $3, matrix = $4, updated_at = $5
WHERE id = $1 RETURNING `+profileColumns, p.ID, p.Name, p.Description, data, p.UpdatedAt)
	updated, err := scanProfile(row)
	if err != nil {
		return Profile{}, db.MapWriteError(err)
	}
	return updated, nil
}

// Delete removes a profile. The roles.permission_id foreign key makes
// PostgreSQL refuse the delete while a role still points here.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permission_profiles WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p   Profile
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	m, err := rbac.UnmarshalMatrix(raw)
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: profile %s: %w", p.ID, err)
	}
	p.Matrix = m
	return p, nil
}

var _ Repository = (*PGRepository)(nil)
