package model

import (
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // charge pushed to the handset; awaiting processor callback
	PaymentStatusSuccess PaymentStatus = "success" // processor confirmed settlement
	PaymentStatusFailed  PaymentStatus = "failed"  // processor rejected the charge or reported failure
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// ParseProcessorStatus maps a processor status token onto a payment status.
// Unrecognised tokens map to pending.
func ParseProcessorStatus(raw string) PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful":
		return PaymentStatusSuccess
	case "failed", "failure":
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}

type Provider string

const (
	ProviderMpesa       Provider = "mpesa"
	ProviderTigoPesa    Provider = "tigopesa"
	ProviderAirtelMoney Provider = "airtelmoney"
	ProviderHaloPesa    Provider = "halopesa"
)

// Payment records one purchase attempt against the mobile-money processor.
type Payment struct {
	ID             string        // UUID
	ExternalID     string        // correlation id echoed back in processor callbacks
	UserPhone      string        // normalised, e.g. 2557XXXXXXXX
	Amount         int64         // whole TZS
	Currency       string        // "TZS"
	Provider       Provider      // see constants above; unknown values kept verbatim
	MaterialID     *string       // nil when the payment funds a premium subscription
	SubscriberID   *string       // user id funding a premium subscription
	Status         PaymentStatus // see constants above
	Reference      *string       // processor transaction id
	CallbackData   json.RawMessage
	AccessCodeID   *string // set at most once, on success
	SubscriptionID *string // set at most once, on success
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentView is the read projection served to polling clients.
type PaymentView struct {
	ID         string
	ExternalID string
	Status     PaymentStatus
	Amount     int64
	Provider   Provider
	CreatedAt  time.Time
	AccessCode *string
	Material   *MaterialLink
}

// MaterialLink is the subset of a catalog item shown on a payment. DriveLink
// stays empty until the payment succeeds.
type MaterialLink struct {
	Title     string
	DriveLink string
}
