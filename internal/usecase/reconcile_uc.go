package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileResult is the state of the payment after a callback was applied.
// Applied is false when the callback changed nothing (duplicate delivery, or
// a non-terminal status).
type ReconcileResult struct {
	PaymentID      string
	ExternalID     string
	Status         model.PaymentStatus
	AccessCode     *string
	SubscriptionID *string
	Applied        bool
}

type ReconcileUseCase interface {
	// Reconcile applies one processor notification to its payment. Safe to
	// call any number of times for the same event.
	Reconcile(ctx context.Context, notice adapter.CallbackNotice) (*ReconcileResult, error)
}

// SubscriptionGranter extends a premium subscription inside the caller's transaction.
type SubscriptionGranter interface {
	GrantFromPayment(ctx context.Context, tx repository.Tx, userID string) (*model.PremiumSubscription, error)
}

type reconcileUC struct {
	payments repository.PaymentRepository
	codes    repository.AccessCodeRepository
	premium  SubscriptionGranter
	notifier adapter.AdminNotifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	codes repository.AccessCodeRepository,
	premium SubscriptionGranter,
	notifier adapter.AdminNotifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &reconcileUC{
		payments: payments,
		codes:    codes,
		premium:  premium,
		notifier: notifier,
		tm:       tm,
		log:      logger,
		now:      time.Now,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (u *reconcileUC) Reconcile(ctx context.Context, notice adapter.CallbackNotice) (*ReconcileResult, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Reconcile")()
	start := time.Now()

	notice.ExternalID = strings.TrimSpace(notice.ExternalID)
	if notice.ExternalID == "" {
		metrics.ObserveCallback("rejected", "missing_external_id", time.Since(start).Seconds())
		return nil, domain.ErrMissingExternalID
	}
	ctx = logging.WithExternalID(ctx, notice.ExternalID)
	log := logging.With(ctx, u.log)

	target := model.ParseProcessorStatus(notice.Status)
	var (
		res        *ReconcileResult
		settled    *model.Payment
		exhausted  bool
		materialID string
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		res, settled, exhausted, materialID = nil, nil, false, ""

		p, err := u.payments.FindByExternalID(ctx, tx, notice.ExternalID)
		if err != nil {
			return err
		}
		if p.Status.IsTerminal() {
			res = resultOf(p, false)
			return nil
		}

		ref := optional(notice.Reference)
		if !target.IsTerminal() {
			if _, err := u.payments.RecordCallback(ctx, tx, p.ID, ref, notice.Raw); err != nil {
				return err
			}
			res = resultOf(p, false)
			return nil
		}

		applied, err := u.payments.TransitionFromPending(ctx, tx, p.ID, target, ref, notice.Raw)
		if err != nil {
			return err
		}
		if !applied {
			// Another delivery won the transition; report what it recorded.
			cur, err := u.payments.FindByID(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			res = resultOf(cur, false)
			return nil
		}
		p.Status = target
		if ref != nil {
			p.Reference = ref
		}
		res, settled = resultOf(p, true), p
		if target != model.PaymentStatusSuccess {
			return nil
		}

		now := u.now()
		switch {
		case p.MaterialID != nil && p.AccessCodeID == nil:
			code, err := u.codes.ClaimAvailable(ctx, tx, *p.MaterialID, p.UserPhone, now)
			if errors.Is(err, domain.ErrNoCodeAvailable) {
				exhausted, materialID = true, *p.MaterialID
				return nil
			}
			if err != nil {
				return err
			}
			ok, err := u.payments.AttachAccessCode(ctx, tx, p.ID, code.ID)
			if err != nil {
				return err
			}
			if !ok {
				// rolls back the claim as well
				return fmt.Errorf("%w: payment %s already holds a grant", domain.ErrOperationFailed, p.ID)
			}
			res.AccessCode = &code.Code
		case p.SubscriberID != nil && p.SubscriptionID == nil:
			sub, err := u.premium.GrantFromPayment(ctx, tx, *p.SubscriberID)
			if err != nil {
				return err
			}
			if _, err := u.payments.AttachSubscription(ctx, tx, p.ID, sub.ID); err != nil {
				return err
			}
			res.SubscriptionID = &sub.ID
		}
		return nil
	})
	if err != nil {
		reason := "error"
		if errors.Is(err, domain.ErrNotFound) {
			reason = "unknown_payment"
			log.Warn().Str("status", notice.Status).Msg("callback for unknown payment")
		} else {
			log.Error().Err(err).Msg("reconciliation failed")
		}
		metrics.ObserveCallback("rejected", reason, time.Since(start).Seconds())
		return nil, err
	}

	log = logging.With(logging.WithPaymentID(ctx, res.PaymentID), u.log)
	switch {
	case res.Applied:
		metrics.IncPayment(string(res.Status))
		if res.Status == model.PaymentStatusSuccess {
			metrics.AddPaymentRevenue(settled.Currency, settled.Amount)
		}
		metrics.ObserveCallback("applied", string(res.Status), time.Since(start).Seconds())
		log.Info().Str("status", string(res.Status)).Bool("code_allocated", res.AccessCode != nil).Msg("payment settled")
	case !res.Status.IsTerminal():
		metrics.ObserveCallback("pending", strings.ToLower(notice.Status), time.Since(start).Seconds())
		log.Info().Str("processor_status", notice.Status).Msg("non-terminal callback recorded")
	default:
		metrics.ObserveCallback("duplicate", string(res.Status), time.Since(start).Seconds())
		log.Debug().Str("status", string(res.Status)).Msg("callback for settled payment ignored")
	}

	if res.AccessCode != nil {
		metrics.IncCodeAllocation("allocated")
	}
	if exhausted {
		metrics.IncCodeAllocation("exhausted")
		log.Warn().Str("material_id", materialID).Msg("payment succeeded but no access code is available")
		u.notifyExhausted(ctx, res, materialID)
	}
	return res, nil
}

func (u *reconcileUC) notifyExhausted(ctx context.Context, res *ReconcileResult, materialID string) {
	if u.notifier == nil {
		return
	}
	text := fmt.Sprintf("Payment %s (%s) succeeded but material %s has no access codes left. Generate more codes and send one to the payer.",
		res.PaymentID, res.ExternalID, materialID)
	if err := u.notifier.NotifyAdmins(ctx, text); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to notify admins about exhausted pool")
	}
}

// resultOf projects the recorded state of p. The code value is loaded
// separately by the status poller; here only a freshly allocated code is set.
func resultOf(p *model.Payment, applied bool) *ReconcileResult {
	return &ReconcileResult{
		PaymentID:      p.ID,
		ExternalID:     p.ExternalID,
		Status:         p.Status,
		SubscriptionID: p.SubscriptionID,
		Applied:        applied,
	}
}
