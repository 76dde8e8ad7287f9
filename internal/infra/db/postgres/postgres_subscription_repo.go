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

// Ensure subscriptionRepo implements repository.PremiumSubscriptionRepository
var _ repository.PremiumSubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, approved, expires_at, approved_by, approved_at, created_at, updated_at`

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PremiumSubscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var s model.PremiumSubscription
	if err := row.Scan(&s.ID, &s.UserID, &s.Approved, &s.ExpiresAt, &s.ApprovedBy, &s.ApprovedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PremiumSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM premium_subscriptions WHERE id::text=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q+";", id)
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.PremiumSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM premium_subscriptions WHERE user_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q+";", userID)
}

func (r *subscriptionRepo) CreateRequest(ctx context.Context, tx repository.Tx, s *model.PremiumSubscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	s.Approved = false

	const q = `
INSERT INTO premium_subscriptions (id, user_id, approved, created_at, updated_at)
VALUES ($1, $2, FALSE, $3, $4)
ON CONFLICT (user_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *subscriptionRepo) Approve(ctx context.Context, tx repository.Tx, id, approver string, expiresAt *time.Time, at time.Time) error {
	const q = `
UPDATE premium_subscriptions
   SET approved=TRUE, approved_by=$2, approved_at=$3, expires_at=$4, updated_at=$3
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, approver, at, expiresAt)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) Revoke(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE premium_subscriptions SET approved=FALSE, updated_at=$2 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Grant approves the user's subscription until expiresAt, creating the row if
// the user never requested one.
func (r *subscriptionRepo) Grant(ctx context.Context, tx repository.Tx, userID, approver string, expiresAt time.Time, at time.Time) (*model.PremiumSubscription, error) {
	const q = `
INSERT INTO premium_subscriptions (id, user_id, approved, expires_at, approved_by, approved_at, created_at, updated_at)
VALUES ($1, $2, TRUE, $3, $4, $5, $5, $5)
ON CONFLICT (user_id) DO UPDATE SET
  approved = TRUE,
  expires_at = EXCLUDED.expires_at,
  approved_by = EXCLUDED.approved_by,
  approved_at = EXCLUDED.approved_at,
  updated_at = EXCLUDED.updated_at
RETURNING ` + subscriptionCols + `;`
	return r.queryOne(ctx, tx, q, uuid.NewString(), userID, expiresAt, approver, at)
}
