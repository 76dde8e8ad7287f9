package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentCols = `id, external_id, user_phone, amount, currency, provider, material_id, subscriber_id, status, azampay_reference, callback_data, access_code_id, subscription_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var cb []byte
	if err := row.Scan(&p.ID, &p.ExternalID, &p.UserPhone, &p.Amount, &p.Currency, &p.Provider, &p.MaterialID, &p.SubscriberID, &p.Status, &p.Reference, &cb, &p.AccessCodeID, &p.SubscriptionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(cb) > 0 {
		p.CallbackData = json.RawMessage(cb)
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, external_id, user_phone, amount, currency, provider, material_id, subscriber_id, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.ExternalID, p.UserPhone, p.Amount, p.Currency, string(p.Provider), p.MaterialID, p.SubscriberID, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE id::text=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE external_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", externalID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SetReference(ctx context.Context, tx repository.Tx, id, reference string) error {
	const q = `UPDATE payments SET azampay_reference=$2, updated_at=NOW() WHERE id=$1 AND azampay_reference IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, reference)
	return mapErr(err)
}

// RecordCallback keeps the latest non-terminal callback for audit without
// changing the status.
func (r *paymentRepo) RecordCallback(ctx context.Context, tx repository.Tx, id string, reference *string, raw json.RawMessage) (bool, error) {
	const q = `
UPDATE payments
   SET azampay_reference = COALESCE($2, azampay_reference),
       callback_data = COALESCE($3::jsonb, callback_data),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, reference, nullJSON(raw))
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

// TransitionFromPending atomically moves a payment out of pending. It returns
// false when the row was already terminal.
func (r *paymentRepo) TransitionFromPending(
	ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, reference *string, raw json.RawMessage,
) (bool, error) {
	if !to.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payments
   SET status = $2,
       azampay_reference = COALESCE($3, azampay_reference),
       callback_data = COALESCE($4::jsonb, callback_data),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), reference, nullJSON(raw))
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) AttachAccessCode(ctx context.Context, tx repository.Tx, id, accessCodeID string) (bool, error) {
	const q = `UPDATE payments SET access_code_id=$2, updated_at=NOW() WHERE id=$1 AND status='success' AND access_code_id IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, accessCodeID)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) AttachSubscription(ctx context.Context, tx repository.Tx, id, subscriptionID string) (bool, error) {
	const q = `UPDATE payments SET subscription_id=$2, updated_at=NOW() WHERE id=$1 AND status='success' AND subscription_id IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, subscriptionID)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

// View reads the committed payment together with its allocated code and
// material. Exactly one of id and externalID is expected to be non-empty.
func (r *paymentRepo) View(ctx context.Context, tx repository.Tx, id, externalID string) (*model.PaymentView, error) {
	const q = `
SELECT p.id, p.external_id, p.status, p.amount, p.provider, p.created_at, ac.code, m.title, m.drive_link
  FROM payments p
  LEFT JOIN access_codes ac ON ac.id = p.access_code_id
  LEFT JOIN materials m ON m.id = p.material_id
 WHERE ($1 <> '' AND p.id::text = $1)
    OR ($2 <> '' AND p.external_id = $2)
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, id, externalID)
	if err != nil {
		return nil, err
	}
	v := &model.PaymentView{}
	var title, link *string
	if err := row.Scan(&v.ID, &v.ExternalID, &v.Status, &v.Amount, &v.Provider, &v.CreatedAt, &v.AccessCode, &title, &link); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if title != nil {
		v.Material = &model.MaterialLink{Title: *title}
		if link != nil {
			v.Material.DriveLink = *link
		}
	}
	return v, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
