package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain/model"
	"exam-access/internal/infra/logging"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 30
)

// ErrPollTimeout means the payment was still pending after the last attempt.
// The payment may still settle later.
var ErrPollTimeout = errors.New("payment still pending after polling")

// ErrStatusUnavailable wraps a failed status request.
var ErrStatusUnavailable = errors.New("status endpoint unavailable")

// PaymentStatus mirrors the payment object served by GET /api/v1/payments/{id}.
type PaymentStatus struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"createdAt"`
	AccessCode *string   `json:"accessCode"`
	Material   *struct {
		Title     string `json:"title"`
		DriveLink string `json:"driveLink"`
	} `json:"material"`
}

func (p *PaymentStatus) Terminal() bool {
	return model.PaymentStatus(p.Status).IsTerminal()
}

type StatusClient struct {
	base  string
	http  *http.Client
	log   *zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStatusClient targets the service at baseURL (scheme and host, optional
// path prefix). httpClient may be nil.
func NewStatusClient(baseURL string, httpClient *http.Client, logger *zerolog.Logger) *StatusClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &StatusClient{
		base:  strings.TrimRight(baseURL, "/"),
		http:  httpClient,
		log:   logger,
		sleep: sleepCtx,
	}
}

// Fetch performs a single status request.
func (c *StatusClient) Fetch(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	u := c.base + "/api/v1/payments/" + url.PathEscape(paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out struct {
		Success bool          `json:"success"`
		Error   string        `json:"error"`
		Payment PaymentStatus `json:"payment"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: http %d: unreadable body", ErrStatusUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return nil, fmt.Errorf("%w: http %d: %s", ErrStatusUnavailable, resp.StatusCode, out.Error)
	}
	return &out.Payment, nil
}

// Poll fetches the payment every interval until it is terminal. After
// maxAttempts pending answers it returns the last status with ErrPollTimeout.
// Request failures count as attempts; the last one is returned if every
// attempt failed. Zero arguments take the defaults.
func (c *StatusClient) Poll(ctx context.Context, paymentID string, interval time.Duration, maxAttempts int) (*PaymentStatus, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var (
		last    *PaymentStatus
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := c.Fetch(ctx, paymentID)
		switch {
		case err != nil:
			lastErr = err
			c.log.Debug().Err(err).Int("attempt", attempt).Str("payment_id", paymentID).Msg("status poll failed")
		case st.Terminal():
			return st, nil
		default:
			last, lastErr = st, nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := c.sleep(ctx, interval); err != nil {
			return last, err
		}
	}
	if last == nil && lastErr != nil {
		return nil, lastErr
	}
	return last, ErrPollTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
