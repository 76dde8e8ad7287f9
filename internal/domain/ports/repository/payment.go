package repository

import (
	"context"
	"encoding/json"
	"time"

	"exam-access/internal/domain/model"
)

// PaymentRepository is the payment ledger. Every mutation after Create is
// conditional on the row still being pending, or on the grant column still
// being empty, and reports whether it applied.
type PaymentRepository interface {
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.Payment, error)

	// SetReference stores the processor transaction id returned at charge time.
	SetReference(ctx context.Context, tx Tx, id, reference string) error
	// RecordCallback stores a non-terminal callback on a pending payment.
	RecordCallback(ctx context.Context, tx Tx, id string, reference *string, raw json.RawMessage) (bool, error)
	// TransitionFromPending moves pending -> success|failed.
	TransitionFromPending(ctx context.Context, tx Tx, id string, to model.PaymentStatus, reference *string, raw json.RawMessage) (bool, error)
	AttachAccessCode(ctx context.Context, tx Tx, id, accessCodeID string) (bool, error)
	AttachSubscription(ctx context.Context, tx Tx, id, subscriptionID string) (bool, error)

	// View joins the allocated code and material for the status poller.
	View(ctx context.Context, tx Tx, id, externalID string) (*model.PaymentView, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
