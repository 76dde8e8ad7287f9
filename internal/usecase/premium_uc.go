package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
)

// Compile-time check
var _ PremiumUseCase = (*premiumUC)(nil)

// PremiumUseCase covers the time-bounded subscription grant.
type PremiumUseCase interface {
	// Request records an unapproved subscription for the caller.
	Request(ctx context.Context, who model.Identity) (*model.PremiumSubscription, error)
	Approve(ctx context.Context, admin model.Identity, subscriptionID string, expiresAt *time.Time) error
	Revoke(ctx context.Context, admin model.Identity, subscriptionID string) error
	HasAccess(ctx context.Context, userID string) (bool, error)
	// Download returns the material link to premium subscribers and admins.
	Download(ctx context.Context, who model.Identity, materialID string) (string, error)
	// GrantFromPayment extends userID's subscription inside the reconciler's transaction.
	GrantFromPayment(ctx context.Context, tx repository.Tx, userID string) (*model.PremiumSubscription, error)
}

type premiumUC struct {
	subs      repository.PremiumSubscriptionRepository
	materials repository.MaterialRepository
	period    time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func NewPremiumUseCase(
	subs repository.PremiumSubscriptionRepository,
	materials repository.MaterialRepository,
	period time.Duration,
	logger *zerolog.Logger,
) *premiumUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &premiumUC{subs: subs, materials: materials, period: period, log: logger, now: time.Now}
}

func requireAdmin(who model.Identity) error {
	if who.UserID == "" {
		return domain.ErrUnauthenticated
	}
	if !who.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (u *premiumUC) Request(ctx context.Context, who model.Identity) (*model.PremiumSubscription, error) {
	defer logging.TraceDuration(u.log, "PremiumUC.Request")()
	if who.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub := &model.PremiumSubscription{UserID: who.UserID, CreatedAt: u.now()}
	if err := u.subs.CreateRequest(ctx, repository.NoTX, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return u.subs.FindByUser(ctx, repository.NoTX, who.UserID)
		}
		return nil, err
	}
	return sub, nil
}

func (u *premiumUC) Approve(ctx context.Context, admin model.Identity, subscriptionID string, expiresAt *time.Time) error {
	defer logging.TraceDuration(u.log, "PremiumUC.Approve")()
	if err := requireAdmin(admin); err != nil {
		return err
	}
	now := u.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return domain.Invalid("expiry")
	}
	err := u.subs.Approve(ctx, repository.NoTX, subscriptionID, admin.UserID, expiresAt, now)
	metrics.IncAdminAction("premium_approve", statusOf(err))
	if err == nil {
		metrics.IncPremiumGrant("admin")
		logging.With(ctx, u.log).Info().Str("subscription_id", subscriptionID).Str("admin", admin.UserID).Msg("premium subscription approved")
	}
	return err
}

func (u *premiumUC) Revoke(ctx context.Context, admin model.Identity, subscriptionID string) error {
	defer logging.TraceDuration(u.log, "PremiumUC.Revoke")()
	if err := requireAdmin(admin); err != nil {
		return err
	}
	err := u.subs.Revoke(ctx, repository.NoTX, subscriptionID, u.now())
	metrics.IncAdminAction("premium_revoke", statusOf(err))
	return err
}

func (u *premiumUC) HasAccess(ctx context.Context, userID string) (bool, error) {
	sub, err := u.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.ActiveAt(u.now()), nil
}

func (u *premiumUC) Download(ctx context.Context, who model.Identity, materialID string) (string, error) {
	defer logging.TraceDuration(u.log, "PremiumUC.Download")()
	if who.UserID == "" {
		return "", domain.ErrUnauthenticated
	}
	if !who.IsAdmin() {
		ok, err := u.HasAccess(ctx, who.UserID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", domain.ErrForbidden
		}
	}
	m, err := u.materials.FindByID(ctx, repository.NoTX, materialID)
	if err != nil {
		return "", err
	}
	if !m.Enabled {
		return "", domain.ErrMaterialInactive
	}
	return m.DriveLink, nil
}

func (u *premiumUC) GrantFromPayment(ctx context.Context, tx repository.Tx, userID string) (*model.PremiumSubscription, error) {
	now := u.now()
	current, err := u.subs.FindByUser(ctx, tx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// An indefinite approval already outlasts any paid period.
	if current.ActiveAt(now) && current.ExpiresAt == nil {
		logging.With(ctx, u.log).Info().Str("user_id", userID).Msg("premium payment on an indefinite subscription, expiry unchanged")
		return current, nil
	}
	expires := current.ExtendFrom(now, u.period)
	sub, err := u.subs.Grant(ctx, tx, userID, "payment", expires, now)
	if err != nil {
		return nil, err
	}
	metrics.IncPremiumGrant("payment")
	return sub, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
