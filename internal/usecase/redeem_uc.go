package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
)

// Compile-time check
var _ RedeemUseCase = (*redeemUC)(nil)

type RedeemUseCase interface {
	// Redeem consumes code for materialID and returns the material's download
	// link. claimant (phone or user id) is recorded as the code's user.
	Redeem(ctx context.Context, materialID, code, claimant string) (string, error)
}

type redeemUC struct {
	codes     repository.AccessCodeRepository
	materials repository.MaterialRepository
	log       *zerolog.Logger
	now       func() time.Time
}

func NewRedeemUseCase(codes repository.AccessCodeRepository, materials repository.MaterialRepository, logger *zerolog.Logger) *redeemUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &redeemUC{codes: codes, materials: materials, log: logger, now: time.Now}
}

func (u *redeemUC) Redeem(ctx context.Context, materialID, code, claimant string) (link string, err error) {
	defer logging.TraceDuration(u.log, "RedeemUC.Redeem")()
	defer func() {
		switch {
		case err == nil:
			metrics.IncCodeRedemption("ok")
		case errors.Is(err, domain.ErrInvalidCode):
			metrics.IncCodeRedemption("invalid")
		default:
			metrics.IncCodeRedemption("error")
		}
	}()

	materialID = strings.TrimSpace(materialID)
	code = model.NormalizeCode(code)
	if materialID == "" {
		return "", domain.Invalid("material")
	}
	if code == "" {
		return "", domain.Invalid("code")
	}

	m, err := u.materials.FindByID(ctx, repository.NoTX, materialID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCode
		}
		return "", err
	}
	if !m.Enabled {
		return "", domain.ErrInvalidCode
	}

	claimant = strings.TrimSpace(claimant)
	if claimant == "" {
		claimant = "anonymous"
	}
	c, err := u.codes.ClaimByCode(ctx, repository.NoTX, m.ID, code, claimant, u.now())
	if err != nil {
		return "", err
	}
	logging.With(ctx, u.log).Info().Str("material_id", m.ID).Str("code_id", c.ID).Msg("access code redeemed")
	return m.DriveLink, nil
}
