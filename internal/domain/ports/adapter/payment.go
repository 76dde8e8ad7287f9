package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrProcessorAuth is returned when the processor refuses to issue a token.
var ErrProcessorAuth = errors.New("failed to authenticate with processor")

// ChargeRequest is a provider-agnostic mobile-money push request.
type ChargeRequest struct {
	AccountNumber string // payer msisdn, international form
	Amount        int64
	Currency      string
	ExternalID    string
	Provider      string // our provider key; the gateway maps it to its own enum
	Properties    map[string]string
}

// ChargeResult is what the processor says synchronously about a charge.
type ChargeResult struct {
	TransactionID string
	Message       string
	Raw           json.RawMessage
}

// ChargeRejectedError keeps the processor's answer verbatim for support.
type ChargeRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ChargeRejectedError) Error() string {
	return fmt.Sprintf("processor rejected charge: http %d: %s", e.StatusCode, e.Body)
}

// CallbackNotice is the canonical form of an asynchronous processor
// notification, produced by the boundary parser.
type CallbackNotice struct {
	ExternalID string
	Status     string
	Reference  string
	Raw        json.RawMessage
}

// PaymentGateway is the hex port for the mobile-money processor.
type PaymentGateway interface {
	Name() string
	// Authenticate returns a processor access token, served from cache when fresh.
	Authenticate(ctx context.Context) (string, error)
	// Charge pushes a payment prompt to the payer's handset.
	Charge(ctx context.Context, token string, req ChargeRequest) (*ChargeResult, error)
}

// TokenSlot is the single cached processor credential.
type TokenSlot struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore holds the token slot. Load returns ok=false on an empty slot.
type TokenStore interface {
	Load(ctx context.Context) (slot TokenSlot, ok bool, err error)
	Save(ctx context.Context, slot TokenSlot) error
}
