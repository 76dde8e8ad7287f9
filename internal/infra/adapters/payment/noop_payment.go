package payment

import (
	"context"
	"fmt"
	"sync"

	"exam-access/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway accepts every charge without contacting a processor.
// It backs dev mode when no AzamPay credentials are configured; callbacks
// are then simulated by posting to the callback endpoint by hand.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]adapter.ChargeRequest // transaction id -> request
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		charges: make(map[string]adapter.ChargeRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) Authenticate(ctx context.Context) (string, error) {
	return "noop-token", nil
}

func (g *NoopPaymentGateway) Charge(ctx context.Context, token string, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.charges[id] = req
	return &adapter.ChargeResult{TransactionID: id, Message: "noop charge accepted"}, nil
}

// Charged returns the request recorded under a transaction id.
func (g *NoopPaymentGateway) Charged(transactionID string) (adapter.ChargeRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.charges[transactionID]
	return r, ok
}
