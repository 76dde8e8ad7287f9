package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/config"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*AzamPayGateway)(nil)

// providerNames maps our provider keys to AzamPay's accountProvider enum.
// Keys outside the table are sent verbatim.
var providerNames = map[string]string{
	"mpesa":       "Mpesa",
	"tigopesa":    "Tigo",
	"airtelmoney": "Airtel",
	"halopesa":    "Halopesa",
}

// ProviderName returns AzamPay's name for the given provider key.
func ProviderName(key string) string {
	if v, ok := providerNames[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return key
}

// AzamPayGateway implements adapter.PaymentGateway against the AzamPay MNO
// checkout REST API.
type AzamPayGateway struct {
	cfg    config.AzamPayConfig
	client *http.Client
	tokens *TokenCache
	logger *zerolog.Logger
}

// NewAzamPayGateway builds the gateway; store decides where the token slot lives.
func NewAzamPayGateway(cfg config.AzamPayConfig, store adapter.TokenStore, logger *zerolog.Logger) (*AzamPayGateway, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("azampay client credentials empty")
	}
	g := &AzamPayGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
	g.tokens = NewTokenCache(store, g.fetchToken, cfg.TokenTTL, cfg.TokenMargin, logger)
	return g, nil
}

func (g *AzamPayGateway) Name() string { return "azampay" }

// Authenticate returns a cached token or fetches one. Any failure is reported
// as adapter.ErrProcessorAuth.
func (g *AzamPayGateway) Authenticate(ctx context.Context) (string, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adapter.ErrProcessorAuth, err)
	}
	return token, nil
}

func (g *AzamPayGateway) fetchToken(ctx context.Context) (token string, err error) {
	defer func() { metrics.IncProcessorRequest("auth", err) }()

	payload := map[string]string{
		"appName":      g.cfg.AppName,
		"clientId":     g.cfg.ClientID,
		"clientSecret": g.cfg.ClientSecret,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.AuthURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("azampay auth: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("azampay auth: decode: %w", err)
	}
	if out.Data.AccessToken == "" {
		return "", errors.New("azampay auth: no access token in response")
	}
	return out.Data.AccessToken, nil
}

type checkoutPayload struct {
	AccountNumber        string            `json:"accountNumber"`
	Amount               string            `json:"amount"`
	Currency             string            `json:"currency"`
	ExternalID           string            `json:"externalId"`
	Provider             string            `json:"provider"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
}

// Charge pushes the MNO checkout. A non-2xx answer, or a 2xx answer with
// success=false, is returned as *adapter.ChargeRejectedError carrying the raw
// body.
func (g *AzamPayGateway) Charge(ctx context.Context, token string, in adapter.ChargeRequest) (res *adapter.ChargeResult, err error) {
	defer func() { metrics.IncProcessorRequest("checkout", err) }()

	payload := checkoutPayload{
		AccountNumber:        in.AccountNumber,
		Amount:               strconv.FormatInt(in.Amount, 10),
		Currency:             in.Currency,
		ExternalID:           in.ExternalID,
		Provider:             ProviderName(in.Provider),
		AdditionalProperties: in.Properties,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.CheckoutURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		// the slot is stale; the next checkout fetches a new token
		g.tokens.Invalidate(ctx)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &adapter.ChargeRejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Success       *bool  `json:"success"`
		TransactionID string `json:"transactionId"`
		Message       string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &adapter.ChargeRejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out.Success != nil && !*out.Success {
		return nil, &adapter.ChargeRejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &adapter.ChargeResult{
		TransactionID: out.TransactionID,
		Message:       out.Message,
		Raw:           json.RawMessage(body),
	}, nil
}
