package repository

import (
	"context"
	"time"

	"exam-access/internal/domain/model"
)

// AccessCodeRepository is the port for the single-use code pool. ClaimAvailable
// and ClaimByCode are the only ways a code becomes used; both are a single
// conditional write so two claimants can never take the same code.
type AccessCodeRepository interface {
	Create(ctx context.Context, tx Tx, code *model.AccessCode) error
	CreateBatch(ctx context.Context, tx Tx, codes []*model.AccessCode) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccessCode, error)
	ListByStatus(ctx context.Context, tx Tx, status model.AccessCodeStatus, limit int) ([]*model.AccessCode, error)
	CountAvailable(ctx context.Context, tx Tx, materialID string) (int, error)

	// ClaimAvailable marks one available pool code for materialID as used.
	// Returns domain.ErrNoCodeAvailable when the pool is empty.
	ClaimAvailable(ctx context.Context, tx Tx, materialID, claimant string, at time.Time) (*model.AccessCode, error)
	// ClaimByCode marks the matching redeemable code as used.
	// Returns domain.ErrInvalidCode on any miss.
	ClaimByCode(ctx context.Context, tx Tx, materialID, code, claimant string, at time.Time) (*model.AccessCode, error)

	// Review moves a pending control number to approved or rejected.
	Review(ctx context.Context, tx Tx, id string, to model.AccessCodeStatus, reviewer string, notes *string, at time.Time) (bool, error)
}
