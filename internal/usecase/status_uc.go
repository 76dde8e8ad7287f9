package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
)

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

// StatusQuery looks a payment up by either of its identifiers.
type StatusQuery struct {
	PaymentID  string
	ExternalID string
}

type StatusUseCase interface {
	Status(ctx context.Context, q StatusQuery) (*model.PaymentView, error)
}

type statusUC struct {
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewStatusUseCase(payments repository.PaymentRepository, logger *zerolog.Logger) *statusUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &statusUC{payments: payments, log: logger}
}

func (u *statusUC) Status(ctx context.Context, q StatusQuery) (*model.PaymentView, error) {
	q.PaymentID = strings.TrimSpace(q.PaymentID)
	q.ExternalID = strings.TrimSpace(q.ExternalID)
	if q.PaymentID == "" && q.ExternalID == "" {
		return nil, domain.Invalid("payment id")
	}
	v, err := u.payments.View(ctx, repository.NoTX, q.PaymentID, q.ExternalID)
	if err != nil {
		return nil, err
	}
	// The code and the drive link are revealed only once the payment settled.
	if v.Status != model.PaymentStatusSuccess {
		v.AccessCode = nil
		if v.Material != nil {
			v.Material = &model.MaterialLink{Title: v.Material.Title}
		}
	}
	return v, nil
}
