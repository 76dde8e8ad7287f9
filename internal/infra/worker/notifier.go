package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/infra/logging"
)

const notifyTimeout = 15 * time.Second

// AsyncNotifier hands admin alerts to the pool so callers never wait on the
// chat API. Delivery errors are logged by the pool.
type AsyncNotifier struct {
	next adapter.AdminNotifier
	pool *Pool
	log  *zerolog.Logger
}

func NewAsyncNotifier(next adapter.AdminNotifier, pool *Pool, logger *zerolog.Logger) *AsyncNotifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AsyncNotifier{next: next, pool: pool, log: logger}
}

// NotifyAdmins queues text. It only fails when the queue cannot take it.
func (n *AsyncNotifier) NotifyAdmins(ctx context.Context, text string) error {
	traceID := logging.TraceIDFrom(ctx)
	err := n.pool.Submit(func(poolCtx context.Context) error {
		ctx, cancel := context.WithTimeout(logging.WithTraceID(poolCtx, traceID), notifyTimeout)
		defer cancel()
		return n.next.NotifyAdmins(ctx, text)
	})
	if err != nil {
		n.log.Warn().Err(err).Str("trace_id", traceID).Msg("admin alert dropped")
	}
	return err
}
