package apiv1

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/infra/adapters/payment"
	"exam-access/internal/infra/logging"
	red "exam-access/internal/infra/redis"
	"exam-access/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Deps are the use cases and settings the v1 API serves. Limiter may be nil.
type Deps struct {
	Checkout  usecase.CheckoutUseCase
	Reconcile usecase.ReconcileUseCase
	Status    usecase.StatusUseCase
	Redeem    usecase.RedeemUseCase
	Codes     usecase.AccessCodeUseCase
	Premium   usecase.PremiumUseCase
	Auth      *Authenticator

	Limiter        usecase.RateLimiter
	ClientLimit    int
	ClientWindow   time.Duration
	CallbackSecret string
}

type Server struct {
	d   Deps
	log *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{d: d, log: logger}
}

// RegisterAPIV1 mounts every /api/v1 route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.limit("checkout")).Post("/checkout", s.checkout)
		r.Post("/payments/callback", s.callback)
		r.Post("/payments/status", s.statusQuery)
		r.Get("/payments/{id}", s.statusByID)
		r.With(s.limit("redeem")).Post("/redeem", s.redeem)
		r.With(s.limit("control_number")).Post("/control-numbers", s.requestControlNumber)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Get("/materials/{id}/download", s.download)
			r.Post("/premium", s.requestPremium)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/control-numbers", s.listControlNumbers)
				r.Post("/control-numbers/{id}/approve", s.reviewControlNumber(true))
				r.Post("/control-numbers/{id}/reject", s.reviewControlNumber(false))
				r.Post("/materials/{id}/codes", s.generateCodes)
				r.Post("/premium/{id}/approve", s.approvePremium)
				r.Post("/premium/{id}/revoke", s.revokePremium)
			})
		})
	})
}

// ---- middleware ----

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.d.Auth == nil {
			writeError(w, r, s.log, domain.ErrUnauthenticated)
			return
		}
		id, err := s.d.Auth.Identify(r)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		ctx := logging.WithUserID(withIdentity(r.Context(), id), id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// limit applies the per-address fixed window to anonymous write routes.
func (s *Server) limit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.d.Limiter == nil || s.d.ClientLimit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := red.ClientActionKey(clientAddr(r), action)
			ok, err := s.d.Limiter.Allow(r.Context(), key, s.d.ClientLimit, s.d.ClientWindow)
			if err != nil {
				logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				writeError(w, r, s.log, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("request body")
	}
	return nil
}

// ---- public routes ----

type checkoutRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	Amount        int64  `json:"amount"`
	Provider      string `json:"provider"`
	MaterialID    string `json:"materialId"`
	MaterialTitle string `json:"materialTitle"`
	// Premium funds a subscription for the bearer of the Authorization token.
	Premium bool `json:"premium"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	req := usecase.CheckoutRequest{
		PhoneNumber:   in.PhoneNumber,
		Amount:        in.Amount,
		Provider:      in.Provider,
		MaterialID:    in.MaterialID,
		MaterialTitle: in.MaterialTitle,
	}
	if in.Premium {
		if s.d.Auth == nil {
			writeError(w, r, s.log, domain.ErrUnauthenticated)
			return
		}
		who, err := s.d.Auth.Identify(r)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		req.SubscriberID = who.UserID
	}

	res, err := s.d.Checkout.Initiate(r.Context(), req)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"paymentId":  res.PaymentID,
		"externalId": res.ExternalID,
		"message":    res.Message,
	})
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, s.log, domain.Invalid("request body"))
		return
	}
	if !payment.VerifyCallbackSignature(s.d.CallbackSecret, body, r.Header.Get("X-Callback-Signature")) {
		logging.With(r.Context(), s.log).Warn().Str("remote", clientAddr(r)).Msg("callback signature mismatch")
		writeError(w, r, s.log, domain.ErrUnauthenticated)
		return
	}
	notice, err := payment.ParseCallback(body)
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("unusable callback body")
		writeError(w, r, s.log, err)
		return
	}

	res, err := s.d.Reconcile.Reconcile(r.Context(), notice)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := map[string]any{
		"success":   true,
		"paymentId": res.PaymentID,
		"status":    res.Status,
	}
	if res.AccessCode != nil {
		out["accessCode"] = *res.AccessCode
	}
	writeJSON(w, http.StatusOK, out)
}

type paymentJSON struct {
	ID         string        `json:"id"`
	ExternalID string        `json:"externalId"`
	Status     string        `json:"status"`
	Amount     int64         `json:"amount"`
	Provider   string        `json:"provider"`
	CreatedAt  time.Time     `json:"createdAt"`
	AccessCode *string       `json:"accessCode"`
	Material   *materialJSON `json:"material"`
}

type materialJSON struct {
	Title     string `json:"title"`
	DriveLink string `json:"driveLink"`
}

func toPaymentJSON(v *model.PaymentView) paymentJSON {
	out := paymentJSON{
		ID:         v.ID,
		ExternalID: v.ExternalID,
		Status:     string(v.Status),
		Amount:     v.Amount,
		Provider:   string(v.Provider),
		CreatedAt:  v.CreatedAt,
		AccessCode: v.AccessCode,
	}
	if v.Material != nil {
		out.Material = &materialJSON{Title: v.Material.Title, DriveLink: v.Material.DriveLink}
	}
	return out
}

func (s *Server) respondStatus(w http.ResponseWriter, r *http.Request, q usecase.StatusQuery) {
	v, err := s.d.Status.Status(r.Context(), q)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": toPaymentJSON(v)})
}

func (s *Server) statusQuery(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PaymentID  string `json:"paymentId"`
		ExternalID string `json:"externalId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	s.respondStatus(w, r, usecase.StatusQuery{PaymentID: in.PaymentID, ExternalID: in.ExternalID})
}

func (s *Server) statusByID(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, r, usecase.StatusQuery{PaymentID: chi.URLParam(r, "id")})
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MaterialID       string `json:"materialId"`
		Code             string `json:"code"`
		ClaimantIdentity string `json:"claimantIdentity"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	link, err := s.d.Redeem.Redeem(r.Context(), in.MaterialID, in.Code, in.ClaimantIdentity)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "downloadUrl": link})
}

func (s *Server) requestControlNumber(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MaterialID  string `json:"materialId"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	c, err := s.d.Codes.RequestControlNumber(r.Context(), in.MaterialID, in.PhoneNumber)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"id":            c.ID,
		"controlNumber": c.Code,
		"status":        c.Status,
	})
}

// ---- authenticated routes ----

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	link, err := s.d.Premium.Download(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "downloadUrl": link})
}

type subscriptionJSON struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Approved  bool       `json:"approved"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (s *Server) requestPremium(w http.ResponseWriter, r *http.Request) {
	sub, err := s.d.Premium.Request(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"subscription": subscriptionJSON{
			ID:        sub.ID,
			UserID:    sub.UserID,
			Approved:  sub.Approved,
			ExpiresAt: sub.ExpiresAt,
		},
	})
}

type accessCodeJSON struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	MaterialID  string     `json:"materialId"`
	Status      string     `json:"status"`
	RequestedBy *string    `json:"requestedBy,omitempty"`
	RequestedAt *time.Time `json:"requestedAt,omitempty"`
	AdminNotes  *string    `json:"adminNotes,omitempty"`
}

func toAccessCodeJSON(c *model.AccessCode) accessCodeJSON {
	return accessCodeJSON{
		ID:          c.ID,
		Code:        c.Code,
		MaterialID:  c.MaterialID,
		Status:      string(c.Status),
		RequestedBy: c.RequestedBy,
		RequestedAt: c.RequestedAt,
		AdminNotes:  c.AdminNotes,
	}
}

func (s *Server) listControlNumbers(w http.ResponseWriter, r *http.Request) {
	status := model.AccessCodeStatus(strings.ToLower(r.URL.Query().Get("status")))
	items, err := s.d.Codes.ListRequests(r.Context(), identityFrom(r.Context()), status)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]accessCodeJSON, 0, len(items))
	for _, c := range items {
		out = append(out, toAccessCodeJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": out})
}

func (s *Server) reviewControlNumber(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Notes string `json:"notes"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &in); err != nil {
				writeError(w, r, s.log, err)
				return
			}
		}
		who, id := identityFrom(r.Context()), chi.URLParam(r, "id")
		var err error
		if approve {
			err = s.d.Codes.ApproveRequest(r.Context(), who, id, in.Notes)
		} else {
			err = s.d.Codes.RejectRequest(r.Context(), who, id, in.Notes)
		}
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) generateCodes(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Count int `json:"count"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	codes, err := s.d.Codes.GenerateCodes(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), in.Count)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.Code)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "codes": out})
}

func (s *Server) approvePremium(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, s.log, err)
			return
		}
	}
	if err := s.d.Premium.Approve(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), in.ExpiresAt); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) revokePremium(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Premium.Revoke(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
