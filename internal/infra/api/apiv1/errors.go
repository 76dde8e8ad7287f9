package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/infra/logging"
)

// errorStatus maps a use case error to the status code and the message shown
// to the caller. Messages never carry internal detail.
func errorStatus(err error) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest, domain.ErrInvalidCode.Error()
	case errors.Is(err, domain.ErrMissingExternalID),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrMaterialInactive),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, domain.ErrUnauthenticated.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.ErrForbidden.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrNotPendingReview), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, adapter.ErrProcessorAuth):
		return http.StatusBadGateway, adapter.ErrProcessorAuth.Error()
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusBadGateway, domain.ErrPaymentFailed.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func rootMessage(err error) string {
	for _, s := range []error{
		domain.ErrMissingExternalID, domain.ErrAmountMismatch, domain.ErrMaterialInactive,
		domain.ErrNotPendingReview, domain.ErrAlreadyExists,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return domain.ErrInvalidArgument.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *zerolog.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.With(r.Context(), log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
