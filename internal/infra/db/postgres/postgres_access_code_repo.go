package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessCodeRepository = (*accessCodeRepo)(nil)

type accessCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepo(pool *pgxpool.Pool) repository.AccessCodeRepository {
	return &accessCodeRepo{pool: pool}
}

const accessCodeCols = `id, code, material_id, status, used, used_at, used_by, requested_by, requested_at, approved_by, approved_at, admin_notes, created_at`

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := row.Scan(
		&ac.ID, &ac.Code, &ac.MaterialID, &ac.Status, &ac.Used, &ac.UsedAt, &ac.UsedBy,
		&ac.RequestedBy, &ac.RequestedAt, &ac.ApprovedBy, &ac.ApprovedAt, &ac.AdminNotes, &ac.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &ac, nil
}

func (r *accessCodeRepo) Create(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO access_codes (id, code, material_id, status, used, requested_by, requested_at, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, model.NormalizeCode(code.Code), code.MaterialID, string(code.Status), code.RequestedBy, code.RequestedAt, code.CreatedAt,
	)
	return mapErr(err)
}

// CreateBatch inserts pool codes in one statement. A duplicate code fails the
// whole batch with domain.ErrAlreadyExists.
func (r *accessCodeRepo) CreateBatch(ctx context.Context, tx repository.Tx, codes []*model.AccessCode) error {
	if len(codes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(codes))
	values := make([]string, 0, len(codes))
	materials := make([]string, 0, len(codes))
	now := time.Now()
	for _, c := range codes {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Code = model.NormalizeCode(c.Code)
		c.Status = model.AccessCodeAvailable
		ids = append(ids, c.ID)
		values = append(values, c.Code)
		materials = append(materials, c.MaterialID)
	}

	const q = `
INSERT INTO access_codes (id, code, material_id, status, used, created_at)
SELECT u.id::uuid, u.code, u.material_id, 'available', FALSE, $4
  FROM unnest($1::text[], $2::text[], $3::text[]) AS u(id, code, material_id);
`
	_, err := execSQL(ctx, r.pool, tx, q, ids, values, materials, now)
	return mapErr(err)
}

func (r *accessCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	q := `SELECT ` + accessCodeCols + ` FROM access_codes WHERE id::text = $1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanAccessCode(row)
}

func (r *accessCodeRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.AccessCodeStatus, limit int) ([]*model.AccessCode, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + accessCodeCols + ` FROM access_codes WHERE status = $1 ORDER BY COALESCE(requested_at, created_at) DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(status), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.AccessCode
	for rows.Next() {
		ac, err := scanAccessCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *accessCodeRepo) CountAvailable(ctx context.Context, tx repository.Tx, materialID string) (int, error) {
	const q = `SELECT COUNT(*) FROM access_codes WHERE material_id = $1 AND status = 'available' AND used = FALSE;`
	row, err := pickRow(ctx, r.pool, tx, q, materialID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

// ClaimAvailable takes the oldest unused pool code. SKIP LOCKED lets
// concurrent reconcilers move on to the next code instead of queueing behind
// a row another transaction is about to take; the outer used = FALSE guard
// keeps the claim exclusive even without the lock.
func (r *accessCodeRepo) ClaimAvailable(ctx context.Context, tx repository.Tx, materialID, claimant string, at time.Time) (*model.AccessCode, error) {
	const q = `
UPDATE access_codes
   SET used = TRUE, used_at = $3, used_by = $2
 WHERE id = (
        SELECT id FROM access_codes
         WHERE material_id = $1 AND status = 'available' AND used = FALSE
         ORDER BY created_at, id
         LIMIT 1
         FOR UPDATE SKIP LOCKED
       )
   AND used = FALSE
RETURNING ` + accessCodeCols + `;`
	row, err := pickRow(ctx, r.pool, tx, q, materialID, claimant, at)
	if err != nil {
		return nil, err
	}
	ac, err := scanAccessCode(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCodeAvailable
	}
	return ac, err
}

func (r *accessCodeRepo) ClaimByCode(ctx context.Context, tx repository.Tx, materialID, code, claimant string, at time.Time) (*model.AccessCode, error) {
	const q = `
UPDATE access_codes
   SET used = TRUE, used_at = $4, used_by = $3
 WHERE material_id = $1
   AND upper(code) = $2
   AND used = FALSE
   AND status IN ('available', 'approved')
RETURNING ` + accessCodeCols + `;`
	row, err := pickRow(ctx, r.pool, tx, q, materialID, model.NormalizeCode(code), claimant, at)
	if err != nil {
		return nil, err
	}
	ac, err := scanAccessCode(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCode
	}
	return ac, err
}

func (r *accessCodeRepo) Review(
	ctx context.Context, tx repository.Tx, id string, to model.AccessCodeStatus, reviewer string, notes *string, at time.Time,
) (bool, error) {
	if to != model.AccessCodeApproved && to != model.AccessCodeRejected {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE access_codes
   SET status = $2, approved_by = $3, approved_at = $4, admin_notes = COALESCE($5, admin_notes)
 WHERE id = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), reviewer, at, notes)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}
