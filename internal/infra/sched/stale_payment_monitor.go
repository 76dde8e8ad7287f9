package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
	red "exam-access/internal/infra/redis"
)

const (
	staleLockKey  = "lock:stale-payments"
	staleScanSize = 200
	staleListed   = 10

	staleAlertPrefix = "alerted:stale-payment:"
	staleAlertTTL    = 7 * 24 * time.Hour
)

// StalePaymentMonitor reports payments stuck in pending longer than
// staleAfter. Such payments never got a usable callback; an admin has to
// check them with the processor. The monitor only reads.
type StalePaymentMonitor struct {
	payments   repository.PaymentRepository
	notifier   adapter.AdminNotifier
	locker     red.Locker
	ledger     red.AlertLedger
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
	now        func() time.Time

	mu      sync.Mutex
	alerted map[string]bool
}

// NewStalePaymentMonitor builds the monitor. locker and ledger may be nil on
// single instance deployments. notifier should deliver synchronously so a
// failed send is retried on the next scan.
func NewStalePaymentMonitor(payments repository.PaymentRepository, notifier adapter.AdminNotifier, locker red.Locker, ledger red.AlertLedger, interval, staleAfter time.Duration, logger *zerolog.Logger) *StalePaymentMonitor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}
	compLog := logger.With().Str("component", "StalePaymentMonitor").Logger()
	return &StalePaymentMonitor{
		payments:   payments,
		notifier:   notifier,
		locker:     locker,
		ledger:     ledger,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &compLog,
		now:        time.Now,
		alerted:    make(map[string]bool),
	}
}

func (m *StalePaymentMonitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.interval).Dur("stale_after", m.staleAfter).Msg("Starting stale payment monitor")
	m.Scan(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Stopping stale payment monitor")
			return ctx.Err()
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan runs one pass and returns the number of stale payments seen.
func (m *StalePaymentMonitor) Scan(ctx context.Context) int {
	if m.locker != nil {
		token, err := m.locker.TryLock(ctx, staleLockKey, m.interval)
		switch {
		case errors.Is(err, red.ErrLockHeld):
			m.log.Debug().Msg("scan skipped; another instance holds the lock")
			return 0
		case err != nil:
			m.log.Warn().Err(err).Msg("lock unavailable; scanning anyway")
		default:
			defer func() {
				if err := m.locker.Unlock(context.WithoutCancel(ctx), staleLockKey, token); err != nil {
					m.log.Warn().Err(err).Msg("unlock failed")
				}
			}()
		}
	}

	cutoff := m.now().Add(-m.staleAfter)
	stale, err := m.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, staleScanSize)
	if err != nil {
		m.log.Error().Err(err).Msg("list pending payments failed")
		return 0
	}
	metrics.SetStalePending(len(stale))

	fresh := m.claim(ctx, m.unseen(stale))
	if len(fresh) == 0 {
		return len(stale)
	}
	m.log.Warn().Int("stale", len(stale)).Int("new", len(fresh)).Msg("stale pending payments found")

	if m.notifier == nil {
		return len(stale)
	}
	err = m.notifier.NotifyAdmins(ctx, staleMessage(fresh, m.staleAfter))
	metrics.IncAdminNotify("stale_payments", err)
	if err != nil {
		m.log.Error().Err(err).Msg("stale payment alert failed")
		m.forget(ctx, fresh)
	}
	return len(stale)
}

// unseen returns the payments not yet alerted on and drops alerted ids that
// are no longer stale.
func (m *StalePaymentMonitor) unseen(stale []*model.Payment) []*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]bool, len(stale))
	var fresh []*model.Payment
	for _, p := range stale {
		current[p.ID] = true
		if !m.alerted[p.ID] {
			fresh = append(fresh, p)
		}
	}
	m.alerted = current
	return fresh
}

// claim keeps the payments no other instance has alerted on yet. Ledger
// errors keep the payment.
func (m *StalePaymentMonitor) claim(ctx context.Context, ps []*model.Payment) []*model.Payment {
	if m.ledger == nil || len(ps) == 0 {
		return ps
	}
	out := ps[:0:0]
	for _, p := range ps {
		first, err := m.ledger.MarkOnce(ctx, staleAlertPrefix+p.ID, staleAlertTTL)
		if err != nil {
			m.log.Warn().Err(err).Str("payment_id", p.ID).Msg("alert ledger unavailable")
			first = true
		}
		if first {
			out = append(out, p)
		}
	}
	return out
}

func (m *StalePaymentMonitor) forget(ctx context.Context, ps []*model.Payment) {
	m.mu.Lock()
	keys := make([]string, 0, len(ps))
	for _, p := range ps {
		delete(m.alerted, p.ID)
		keys = append(keys, staleAlertPrefix+p.ID)
	}
	m.mu.Unlock()

	if m.ledger != nil {
		if err := m.ledger.Forget(context.WithoutCancel(ctx), keys...); err != nil {
			m.log.Warn().Err(err).Msg("alert ledger cleanup failed")
		}
	}
}

func staleMessage(ps []*model.Payment, after time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d payment(s) pending for more than %s:\n", len(ps), after)
	for i, p := range ps {
		if i == staleListed {
			fmt.Fprintf(&b, "... and %d more\n", len(ps)-staleListed)
			break
		}
		fmt.Fprintf(&b, "- %s %d %s (%s) since %s\n", p.ExternalID, p.Amount, p.Currency, p.Provider, p.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}
