package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
	red "exam-access/internal/infra/redis"
)

// Compile-time check
var _ AccessCodeUseCase = (*accessCodeUC)(nil)

type AccessCodeUseCase interface {
	// RequestControlNumber issues a reference the user pays against manually;
	// an admin approves it afterwards.
	RequestControlNumber(ctx context.Context, materialID, phone string) (*model.AccessCode, error)
	GenerateCodes(ctx context.Context, admin model.Identity, materialID string, count int) ([]*model.AccessCode, error)
	ApproveRequest(ctx context.Context, admin model.Identity, codeID string, notes string) error
	RejectRequest(ctx context.Context, admin model.Identity, codeID string, notes string) error
	ListRequests(ctx context.Context, admin model.Identity, status model.AccessCodeStatus) ([]*model.AccessCode, error)
}

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type AccessCodeConfig struct {
	ControlNumberPrefix string
	RequestLimit        int
	RequestWindow       time.Duration
	MaxGenerate         int
	Dev                 bool
}

type accessCodeUC struct {
	codes     repository.AccessCodeRepository
	materials repository.MaterialRepository
	limiter   RateLimiter
	notifier  adapter.AdminNotifier
	cfg       AccessCodeConfig
	log       *zerolog.Logger
	now       func() time.Time
}

// NewAccessCodeUseCase wires the code pool administration. limiter and
// notifier may be nil.
func NewAccessCodeUseCase(
	codes repository.AccessCodeRepository,
	materials repository.MaterialRepository,
	limiter RateLimiter,
	notifier adapter.AdminNotifier,
	cfg AccessCodeConfig,
	logger *zerolog.Logger,
) *accessCodeUC {
	if cfg.ControlNumberPrefix == "" {
		cfg.ControlNumberPrefix = "ASA"
	}
	if cfg.MaxGenerate <= 0 {
		cfg.MaxGenerate = 500
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &accessCodeUC{
		codes:     codes,
		materials: materials,
		limiter:   limiter,
		notifier:  notifier,
		cfg:       cfg,
		log:       logger,
		now:       time.Now,
	}
}

const maxCodeAttempts = 3

func (u *accessCodeUC) enabledMaterial(ctx context.Context, id string) (*model.Material, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Invalid("material")
	}
	m, err := u.materials.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("material")
		}
		return nil, err
	}
	if !m.Enabled {
		return nil, domain.ErrMaterialInactive
	}
	return m, nil
}

func (u *accessCodeUC) RequestControlNumber(ctx context.Context, materialID, phone string) (*model.AccessCode, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.RequestControlNumber")()
	log := logging.With(ctx, u.log)

	digits := digitsOnly(phone)
	if len(digits) < 9 || len(digits) > 12 {
		return nil, domain.Invalid("phone number")
	}
	m, err := u.enabledMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}

	if u.limiter != nil && u.cfg.RequestLimit > 0 {
		ok, err := u.limiter.Allow(ctx, red.PhoneActionKey(digits, "control_number"), u.cfg.RequestLimit, u.cfg.RequestWindow)
		if err != nil {
			// fail open
			log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncControlNumber("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	now := u.now()
	var code *model.AccessCode
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		value, err := generateControlNumber(u.cfg.ControlNumberPrefix, now.Year())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		c := &model.AccessCode{
			Code:        value,
			MaterialID:  m.ID,
			Status:      model.AccessCodePending,
			RequestedBy: &digits,
			RequestedAt: &now,
			CreatedAt:   now,
		}
		err = u.codes.Create(ctx, repository.NoTX, c)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		code = c
		break
	}
	if code == nil {
		return nil, fmt.Errorf("%w: could not allocate a unique control number", domain.ErrOperationFailed)
	}
	metrics.IncControlNumber(string(model.AccessCodePending))
	log.Info().Str("material_id", m.ID).Str("phone", logging.Redact(digits, u.cfg.Dev)).Msg("control number requested")

	if u.notifier != nil {
		text := fmt.Sprintf("New control number %s for %q requested by %s. Approve it once payment is confirmed.", code.Code, m.Title, digits)
		if err := u.notifier.NotifyAdmins(ctx, text); err != nil {
			log.Warn().Err(err).Msg("failed to notify admins about control number request")
		}
	}
	return code, nil
}

func (u *accessCodeUC) GenerateCodes(ctx context.Context, admin model.Identity, materialID string, count int) ([]*model.AccessCode, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.GenerateCodes")()
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if count <= 0 || count > u.cfg.MaxGenerate {
		return nil, domain.Invalid("count")
	}
	m, err := u.enabledMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	seen := make(map[string]struct{}, count)
	codes := make([]*model.AccessCode, 0, count)
	for len(codes) < count {
		value, err := generateActivationCode()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		codes = append(codes, &model.AccessCode{
			Code:       value,
			MaterialID: m.ID,
			Status:     model.AccessCodeAvailable,
			CreatedAt:  now,
		})
	}
	err = u.codes.CreateBatch(ctx, repository.NoTX, codes)
	metrics.IncAdminAction("generate_codes", statusOf(err))
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("material_id", m.ID).Int("count", count).Str("admin", admin.UserID).Msg("access codes generated")
	return codes, nil
}

func (u *accessCodeUC) ApproveRequest(ctx context.Context, admin model.Identity, codeID string, notes string) error {
	defer logging.TraceDuration(u.log, "AccessCodeUC.ApproveRequest")()
	return u.review(ctx, admin, codeID, model.AccessCodeApproved, notes)
}

func (u *accessCodeUC) RejectRequest(ctx context.Context, admin model.Identity, codeID string, notes string) error {
	defer logging.TraceDuration(u.log, "AccessCodeUC.RejectRequest")()
	return u.review(ctx, admin, codeID, model.AccessCodeRejected, notes)
}

func (u *accessCodeUC) review(ctx context.Context, admin model.Identity, codeID string, to model.AccessCodeStatus, notes string) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	if strings.TrimSpace(codeID) == "" {
		return domain.Invalid("code id")
	}
	var n *string
	if notes = strings.TrimSpace(notes); notes != "" {
		n = &notes
	}
	ok, err := u.codes.Review(ctx, repository.NoTX, codeID, to, admin.UserID, n, u.now())
	if err == nil && !ok {
		err = domain.ErrNotPendingReview
	}
	metrics.IncAdminAction("review_"+string(to), statusOf(err))
	if err != nil {
		return err
	}
	metrics.IncControlNumber(string(to))
	logging.With(ctx, u.log).Info().Str("code_id", codeID).Str("status", string(to)).Str("admin", admin.UserID).Msg("control number reviewed")
	return nil
}

func (u *accessCodeUC) ListRequests(ctx context.Context, admin model.Identity, status model.AccessCodeStatus) ([]*model.AccessCode, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	switch status {
	case "":
		status = model.AccessCodePending
	case model.AccessCodePending, model.AccessCodeApproved, model.AccessCodeRejected:
	default:
		return nil, domain.Invalid("status")
	}
	return u.codes.ListByStatus(ctx, repository.NoTX, status, 100)
}
