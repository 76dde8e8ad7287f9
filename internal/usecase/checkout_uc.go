package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutRequest is a purchase intent. Exactly one of MaterialID and
// SubscriberID names the target.
type CheckoutRequest struct {
	PhoneNumber   string
	Amount        int64
	Provider      string
	MaterialID    string
	MaterialTitle string
	SubscriberID  string
}

type CheckoutResult struct {
	PaymentID  string
	ExternalID string
	Message    string
}

type CheckoutUseCase interface {
	// Initiate records a pending payment and pushes the charge to the payer's handset.
	Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// CheckoutConfig carries the payment settings the initiator needs.
type CheckoutConfig struct {
	Currency     string
	CountryCode  string
	IDPrefix     string
	PremiumPrice int64
	Dev          bool
}

type checkoutUC struct {
	payments  repository.PaymentRepository
	materials repository.MaterialRepository
	gateway   adapter.PaymentGateway
	cfg       CheckoutConfig
	log       *zerolog.Logger
	now       func() time.Time
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	materials repository.MaterialRepository,
	gateway adapter.PaymentGateway,
	cfg CheckoutConfig,
	logger *zerolog.Logger,
) *checkoutUC {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "TASSA"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &checkoutUC{
		payments:  payments,
		materials: materials,
		gateway:   gateway,
		cfg:       cfg,
		log:       logger,
		now:       time.Now,
	}
}

// NewExternalID returns a time-ordered, collision-resistant correlation id.
func NewExternalID(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func (u *checkoutUC) validate(req *CheckoutRequest) error {
	req.Provider = strings.TrimSpace(req.Provider)
	req.MaterialID = strings.TrimSpace(req.MaterialID)
	req.SubscriberID = strings.TrimSpace(req.SubscriberID)
	switch {
	case strings.TrimSpace(req.PhoneNumber) == "":
		return domain.Invalid("phone number")
	case req.Amount <= 0:
		return domain.Invalid("amount")
	case req.Provider == "":
		return domain.Invalid("provider")
	case req.MaterialID == "" && req.SubscriberID == "":
		return domain.Invalid("material")
	case req.MaterialID != "" && req.SubscriberID != "":
		return domain.Invalid("material")
	}
	return nil
}

func (u *checkoutUC) checkTarget(ctx context.Context, req *CheckoutRequest) error {
	if req.SubscriberID != "" {
		// Premium checkout is off until a price is configured.
		if u.cfg.PremiumPrice <= 0 {
			return domain.Invalid("material")
		}
		if req.Amount != u.cfg.PremiumPrice {
			return domain.ErrAmountMismatch
		}
		return nil
	}
	m, err := u.materials.FindByID(ctx, repository.NoTX, req.MaterialID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("material")
		}
		return err
	}
	if !m.Enabled {
		return domain.ErrMaterialInactive
	}
	if m.Price > 0 && req.Amount != m.Price {
		return domain.ErrAmountMismatch
	}
	if req.MaterialTitle == "" {
		req.MaterialTitle = m.Title
	}
	return nil
}

func (u *checkoutUC) Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Initiate")()

	if err := u.validate(&req); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(req.PhoneNumber, u.cfg.CountryCode)
	if err != nil {
		return nil, err
	}
	if err := u.checkTarget(ctx, &req); err != nil {
		return nil, err
	}

	externalID := NewExternalID(u.cfg.IDPrefix)
	ctx = logging.WithExternalID(ctx, externalID)
	log := logging.With(ctx, u.log)

	// Authenticate before writing anything so an auth outage leaves no row behind.
	token, err := u.gateway.Authenticate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("processor authentication failed")
		if !errors.Is(err, adapter.ErrProcessorAuth) {
			err = fmt.Errorf("%w: %v", adapter.ErrProcessorAuth, err)
		}
		return nil, err
	}

	now := u.now()
	p := &model.Payment{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		UserPhone:  phone,
		Amount:     req.Amount,
		Currency:   u.cfg.Currency,
		Provider:   model.Provider(strings.ToLower(req.Provider)),
		Status:     model.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.MaterialID != "" {
		p.MaterialID = &req.MaterialID
	} else {
		p.SubscriberID = &req.SubscriberID
	}
	if err := u.payments.Create(ctx, repository.NoTX, p); err != nil {
		log.Error().Err(err).Msg("failed to create payment record")
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	ctx = logging.WithPaymentID(ctx, p.ID)
	log = logging.With(ctx, u.log)

	props := map[string]string{}
	if req.MaterialID != "" {
		props["materialId"] = req.MaterialID
		props["materialTitle"] = req.MaterialTitle
	} else {
		props["subscriberId"] = req.SubscriberID
	}
	res, err := u.gateway.Charge(ctx, token, adapter.ChargeRequest{
		AccountNumber: phone,
		Amount:        req.Amount,
		Currency:      u.cfg.Currency,
		ExternalID:    externalID,
		Provider:      req.Provider,
		Properties:    props,
	})
	if err != nil {
		var rej *adapter.ChargeRejectedError
		if errors.As(err, &rej) {
			raw, _ := json.Marshal(map[string]string{"error": rej.Body})
			if _, ferr := u.payments.TransitionFromPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, nil, raw); ferr != nil {
				log.Error().Err(ferr).Msg("failed to mark rejected payment as failed")
			} else {
				metrics.IncPayment(string(model.PaymentStatusFailed))
			}
			log.Warn().Int("http_status", rej.StatusCode).Str("body", rej.Body).Msg("processor rejected charge")
		} else {
			// The push may still have reached the handset; the payment stays
			// pending so a late callback can settle it.
			log.Error().Err(err).Msg("charge request did not complete")
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}

	if res.TransactionID != "" {
		if err := u.payments.SetReference(ctx, repository.NoTX, p.ID, res.TransactionID); err != nil {
			log.Warn().Err(err).Msg("failed to store processor reference")
		}
	}
	log.Info().
		Str("phone", logging.Redact(phone, u.cfg.Dev)).
		Int64("amount", req.Amount).
		Str("provider", req.Provider).
		Msg("payment initiated")

	return &CheckoutResult{
		PaymentID:  p.ID,
		ExternalID: externalID,
		Message:    "Payment initiated. Please check your phone to complete the transaction.",
	}, nil
}
