package postgres

import (
	"context"
	"errors"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var (
	_ repository.MaterialRepository = (*materialRepo)(nil)
	_ repository.RoleRepository     = (*roleRepo)(nil)
)

// materialRepo reads the catalog maintained by the admin tooling.
type materialRepo struct {
	pool *pgxpool.Pool
}

func NewMaterialRepo(pool *pgxpool.Pool) *materialRepo {
	return &materialRepo{pool: pool}
}

func (r *materialRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Material, error) {
	const q = `
SELECT id, title, COALESCE(description, ''), COALESCE(category, ''), COALESCE(year, ''),
       COALESCE(drive_link, ''), enabled, COALESCE(price, 0), created_at, updated_at
  FROM materials
 WHERE id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var m model.Material
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Category, &m.Year, &m.DriveLink, &m.Enabled, &m.Price, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &m, nil
}

type roleRepo struct {
	pool *pgxpool.Pool
}

func NewRoleRepo(pool *pgxpool.Pool) *roleRepo {
	return &roleRepo{pool: pool}
}

// RoleOf returns the strongest role held by userID. Users without a row are basic.
func (r *roleRepo) RoleOf(ctx context.Context, userID string) (model.Role, error) {
	const q = `
SELECT role
  FROM user_roles
 WHERE user_id = $1
 ORDER BY CASE role WHEN 'admin' THEN 0 WHEN 'premium' THEN 1 ELSE 2 END
 LIMIT 1;
`
	var role string
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RoleBasic, nil
		}
		return "", mapErr(err)
	}
	return model.Role(role), nil
}
